package app

// Minimal demo page for manual testing. Real clients speak the /ws
// contract directly.
const indexHTML = `<!DOCTYPE html>
<html>
    <head>
        <title>chatrelay</title>
    </head>
    <body>
        <h1>chatrelay</h1>
        <form action="" onsubmit="sendMessage(event)">
            <input type="text" id="messageText" autocomplete="off"/>
            <button>Send</button>
        </form>
        <ul id="messages"></ul>
        <script>
            var username = window.prompt("Name?") || "anon";
            var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
            ws.onmessage = function(event) {
                var item = document.createElement("li");
                try {
                    var data = JSON.parse(event.data);
                    var when = new Date(data.timestamp).toLocaleTimeString();
                    item.textContent = "[" + when + "] " + data.user + ": " + data.text;
                } catch (e) {
                    item.textContent = event.data; // server notice, plain text
                }
                document.getElementById("messages").appendChild(item);
            };
            function sendMessage(event) {
                var input = document.getElementById("messageText");
                ws.send(JSON.stringify({ text: input.value, user: username }));
                input.value = "";
                event.preventDefault();
            }
        </script>
    </body>
</html>
`
