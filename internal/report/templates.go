package report

// htmlTemplate is the page rendered by HTMLModule.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --accent-primary: #3b82f6;
            --accent-success: #22c55e;
            --accent-error: #ef4444;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            margin: 0;
            line-height: 1.6;
        }
        .container { max-width: 1100px; margin: 0 auto; padding: 2rem; }
        .card {
            background: var(--bg-primary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 1.25rem;
            margin-bottom: 1.5rem;
        }
        .status { font-weight: 600; }
        .status.passed { color: var(--accent-success); }
        .status.failed, .violation { color: var(--accent-error); }
        .muted { color: var(--text-secondary); font-size: 0.9rem; }
        table { border-collapse: collapse; width: 100%; margin: 0.75rem 0; }
        th, td { text-align: right; padding: 0.25rem 0.5rem; border-bottom: 1px solid var(--border-color); }
        th:first-child, td:first-child { text-align: left; }
        svg .bar { fill: var(--accent-primary); }
        svg .mark { stroke: var(--accent-error); stroke-dasharray: 4 2; }
        svg text { font-size: 10px; fill: var(--text-secondary); }
    </style>
</head>
<body>
<div class="container">
    <h1>{{.Title}}</h1>
    <p class="muted">Generated {{.Generated}}</p>
    {{range .Entries}}
    <div class="card">
        <h2>{{.ID}}
            {{if .Aborted}}<span class="status failed">aborted</span>
            {{else if .Passed}}<span class="status passed">passed</span>
            {{else}}<span class="status failed">failed</span>{{end}}
        </h2>
        {{if .Aborted}}
        <p class="violation">{{.Aborted}}</p>
        {{else}}
        <p class="muted">{{.Config}}</p>
        <table>
            <tr><th>clock</th><th>samples</th><th>failures</th><th>min</th><th>avg</th><th>median</th><th>p90</th><th>p95</th><th>p99</th><th>max</th><th>throughput</th><th>errors</th></tr>
            {{range .Summaries}}
            <tr>
                <td>{{.Clock}}</td>
                <td>{{formatNumber .Samples}}</td>
                <td>{{formatNumber .Failures}}</td>
                <td>{{.Min}}</td>
                <td>{{fixed .Average}}</td>
                <td>{{.Median}}</td>
                <td>{{.P90}}</td>
                <td>{{.P95}}</td>
                <td>{{.P99}}</td>
                <td>{{.Max}}</td>
                <td>{{if .ThroughputSet}}{{fixed .Throughput}}/s{{else}}-{{end}}</td>
                <td>{{percent .ErrorsRate}}</td>
            </tr>
            {{end}}
        </table>
        {{with .Chart}}{{$chartHeight := .Height}}
        <svg width="{{.Width}}" height="{{.ViewHeight}}" viewBox="0 -14 {{.Width}} {{.ViewHeight}}" role="img">
            {{range .Bars}}<rect class="bar" x="{{.X}}" y="{{.Y}}" width="{{.Width}}" height="{{.Height}}"><title>{{.Latency}}ms: {{.Count}}</title></rect>
            {{end}}
            {{range .Marks}}<line class="mark" x1="{{.X}}" y1="0" x2="{{.X}}" y2="{{$chartHeight}}"></line><text x="{{.X}}" y="-4">{{.Name}}</text>
            {{end}}
        </svg>
        <p class="muted">latency {{.MinX}}ms to {{.MaxX}}ms</p>
        {{end}}
        {{range .Violations}}<p class="violation">✗ {{.}}</p>{{end}}
        {{end}}
    </div>
    {{end}}
</div>
</body>
</html>
`
