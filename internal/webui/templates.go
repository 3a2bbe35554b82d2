package webui

import (
	"html/template"
)

// Templates contains all HTML templates for the web UI
var Templates = template.Must(template.New("").Funcs(template.FuncMap{
	"levelClass": func(level string) string {
		switch level {
		case "error", "fatal", "panic":
			return "log-error"
		case "warn":
			return "log-warn"
		case "debug", "trace":
			return "log-debug"
		default:
			return "log-info"
		}
	},
	"span": func(columns []string) int {
		return len(columns)
	},
}).Parse(`
{{define "base"}}
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Live Dashboard</title>
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --bg-tertiary: #21262d;
            --border-color: #30363d;
            --text-primary: #e6edf3;
            --text-secondary: #8b949e;
            --text-muted: #6e7681;
            --accent-green: #3fb950;
            --accent-red: #f85149;
            --accent-yellow: #d29922;
            --accent-blue: #58a6ff;
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }

        header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 2rem;
            padding-bottom: 1.5rem;
            border-bottom: 1px solid var(--border-color);
        }

        .server-status { display: flex; align-items: center; gap: 0.5rem; }

        .status-dot {
            width: 10px;
            height: 10px;
            border-radius: 50%;
            background: var(--accent-red);
        }

        .status-dot.connected { background: var(--accent-green); }

        .readouts {
            display: grid;
            grid-template-columns: repeat(4, 1fr);
            gap: 1rem;
            margin-bottom: 2rem;
        }

        .card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 1rem 1.25rem;
        }

        .card h3 {
            font-size: 0.8rem;
            color: var(--text-secondary);
            text-transform: uppercase;
            letter-spacing: 0.05em;
        }

        .readout { font-family: monospace; font-size: 1.5rem; }

        .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; margin-bottom: 2rem; }

        table { width: 100%; border-collapse: collapse; font-family: monospace; font-size: 0.85rem; }

        th, td { text-align: left; padding: 0.35rem 0.5rem; border-bottom: 1px solid var(--border-color); }

        th { color: var(--text-secondary); font-weight: 500; }

        .table-wrap { max-height: 420px; overflow-y: auto; }

        .placeholder { color: var(--text-muted); text-align: center; }

        .status-block {
            display: flex;
            justify-content: space-between;
            padding: 0.35rem 0;
            border-bottom: 1px solid var(--bg-tertiary);
        }

        .status-block h4 { font-weight: 500; }

        .status-block p { color: var(--text-secondary); font-family: monospace; }

        .log-container {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            max-height: 300px;
            overflow-y: auto;
            font-family: monospace;
            font-size: 0.8rem;
            padding: 0.5rem 1rem;
        }

        .log-entry { display: flex; gap: 1rem; }
        .log-clear {
            background: var(--bg-tertiary);
            color: var(--text-secondary);
            border: 1px solid var(--border-color);
            border-radius: 4px;
            margin-bottom: 0.5rem;
            padding: 0.2rem 0.75rem;
        }
        .log-time { color: var(--text-muted); }
        .log-level { width: 3.5rem; text-transform: uppercase; }
        .log-error .log-level { color: var(--accent-red); }
        .log-warn .log-level { color: var(--accent-yellow); }
        .log-info .log-level { color: var(--accent-blue); }
        .log-debug .log-level { color: var(--text-muted); }

        footer { margin-top: 2rem; color: var(--text-muted); font-size: 0.8rem; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Live Dashboard</h1>
            <div class="server-status">
                <span id="server-status-dot" class="status-dot{{if .Connected}} connected{{end}}"></span>
                <span id="server-status-text">{{.StatusText}}</span>
            </div>
        </header>
        {{template "content" .}}
        <footer>{{.Build.Version}} ({{.Build.Commit}}) built {{.Build.BuildDate}}</footer>
    </div>
    <script>
        let etag = null;

        function setText(id, text) {
            const el = document.getElementById(id);
            if (el) el.textContent = text;
        }

        function renderTable(id, table) {
            const body = document.getElementById(id);
            if (!body) return;
            body.replaceChildren();
            for (const row of table.rows || []) {
                const tr = document.createElement('tr');
                for (const cell of row) {
                    const td = document.createElement('td');
                    td.textContent = cell;
                    tr.appendChild(td);
                }
                body.appendChild(tr);
            }
            if (table.placeholder) {
                const tr = document.createElement('tr');
                const td = document.createElement('td');
                td.colSpan = table.columns.length;
                td.className = 'placeholder';
                td.textContent = table.placeholder;
                tr.appendChild(td);
                body.appendChild(tr);
            }
        }

        function renderPanel(id, blocks) {
            const container = document.getElementById(id);
            if (!container) return;
            container.replaceChildren();
            for (const b of blocks || []) {
                const div = document.createElement('div');
                div.className = 'status-block';
                const h = document.createElement('h4');
                h.textContent = b.title;
                const p = document.createElement('p');
                p.textContent = b.body;
                div.append(h, p);
                container.appendChild(div);
            }
        }

        function render(snap) {
            for (const [id, text] of Object.entries(snap.texts)) setText(id, text);
            for (const [id, table] of Object.entries(snap.tables)) renderTable(id, table);
            for (const [id, blocks] of Object.entries(snap.panels)) renderPanel(id, blocks);
            const dot = document.getElementById('server-status-dot');
            if (dot) dot.classList.toggle('connected', snap.connection === 'Connected');
        }

        async function refresh() {
            try {
                const headers = etag ? { 'If-None-Match': etag } : {};
                const res = await fetch('/api/snapshot', { headers });
                if (res.status === 304 || !res.ok) return;
                etag = res.headers.get('ETag');
                render(await res.json());
            } catch (e) {
                console.error('snapshot refresh failed', e);
            }
        }

        function refreshLogs() {
            fetch('/api/logs')
                .then(r => r.json())
                .then(data => {
                    const container = document.querySelector('.log-container');
                    if (!container || !data.entries) return;
                    const wasAtBottom = container.scrollHeight - container.scrollTop <= container.clientHeight + 50;
                    container.replaceChildren();
                    for (const e of data.entries) {
                        const div = document.createElement('div');
                        div.className = 'log-entry log-' + e.level;
                        const time = document.createElement('span');
                        time.className = 'log-time';
                        time.textContent = new Date(e.timestamp).toLocaleTimeString();
                        const level = document.createElement('span');
                        level.className = 'log-level';
                        level.textContent = e.level;
                        const msg = document.createElement('span');
                        msg.className = 'log-message';
                        msg.textContent = e.message;
                        div.append(time, level, msg);
                        container.appendChild(div);
                    }
                    if (wasAtBottom) container.scrollTop = container.scrollHeight;
                });
        }

        function clearLogs() {
            fetch('/api/logs', { method: 'DELETE' }).then(refreshLogs);
        }

        setInterval(refresh, 1000);
        setInterval(refreshLogs, 5000);
    </script>
</body>
</html>
{{end}}

{{define "content"}}
        <section class="readouts">
            {{range .Readouts}}
            <div class="card">
                <h3>{{.Label}}</h3>
                <div id="{{.ID}}" class="readout">{{.Text}}</div>
            </div>
            {{end}}
        </section>

        <section class="grid">
            {{template "table" .Requests}}
            {{template "table" .Errors}}
        </section>

        <section class="grid">
            {{range .Panels}}
            <div class="card">
                <h3>{{.Title}}</h3>
                <div id="{{.ID}}">
                    {{range .Blocks}}
                    <div class="status-block"><h4>{{.Title}}</h4><p>{{.Body}}</p></div>
                    {{end}}
                </div>
            </div>
            {{end}}
        </section>

        <section>
            <button type="button" class="log-clear" onclick="clearLogs()">Clear</button>
            <div class="log-container">
                {{range .Logs}}
                <div class="log-entry {{levelClass .Level}}">
                    <span class="log-time">{{.Timestamp.Format "15:04:05"}}</span>
                    <span class="log-level">{{.Level}}</span>
                    <span class="log-message">{{.Message}}</span>
                </div>
                {{end}}
            </div>
        </section>
{{end}}

{{define "table"}}
            <div class="card table-wrap">
                <table>
                    <thead>
                        <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
                    </thead>
                    <tbody id="{{.ID}}">
                        {{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
                        {{end}}
                        {{if .Placeholder}}
                        <tr><td colspan="{{span .Columns}}" class="placeholder">{{.Placeholder}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
{{end}}
`))
