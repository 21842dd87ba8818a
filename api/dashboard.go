package api

import (
	"html/template"
	"net/http"
	"sort"

	"github.com/seenimoa/newswatch/pkg/models"
)

// tone picks a CSS class for a signed score.
func tone(v float64) string {
	switch {
	case v > 0.05:
		return "pos"
	case v < -0.05:
		return "neg"
	default:
		return "neu"
	}
}

var dashboardTmpl = template.Must(template.New("dashboard").
	Funcs(template.FuncMap{"tone": tone}).
	Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>newswatch</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 64rem; color: #1a1a2e; }
h1 { font-size: 1.4rem; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { text-align: left; padding: 0.4rem 0.8rem; border-bottom: 1px solid #ddd; font-size: 0.9rem; }
.pos { color: #1a7a3a; } .neg { color: #b02a2a; } .neu { color: #666; }
.badge { font-size: 0.75rem; padding: 0.1rem 0.4rem; border-radius: 3px; background: #eee; }
#log { font-family: monospace; font-size: 0.8rem; color: #666; white-space: pre-line; }
form { margin: 1rem 0; }
input, button { font-size: 0.9rem; padding: 0.3rem 0.5rem; }
</style>
</head>
<body>
<h1>Portfolio news sentiment</h1>
<form id="run">
<input name="assets" placeholder="AAPL, MSFT, TSLA" size="40" required>
<button type="submit">Analyze</button>
</form>
<div id="log"></div>
{{if .Result}}
<h2>Latest run - {{.Result.Timestamp.Format "2006-01-02 15:04 MST"}}</h2>
<p>Overall sentiment <strong class="{{tone .Result.Portfolio.OverallSentiment}}">{{printf "%+.2f" .Result.Portfolio.OverallSentiment}}</strong>,
impact <strong>{{printf "%+.2f" .Result.Portfolio.OverallImpact}}</strong></p>
<p><em>{{.Result.Portfolio.Recommendation}}</em></p>
<table>
<tr><th>Asset</th><th>Articles</th><th>Sentiment</th><th>Impact</th><th>Dominant</th><th>Status</th></tr>
{{range .Assets}}
<tr>
<td>{{.Asset}}</td>
<td>{{.ArticleCount}}</td>
<td class="{{tone .AvgSentiment}}">{{printf "%+.2f" .AvgSentiment}}</td>
<td>{{printf "%+.2f" .AvgImpact}}</td>
<td>{{.DominantSentiment}}</td>
<td><span class="badge">{{index $.Result.Statuses .Asset}}</span></td>
</tr>
{{end}}
</table>
<h3>Articles</h3>
<table>
<tr><th>Asset</th><th>Title</th><th>Source</th><th>Sentiment</th><th>Method</th></tr>
{{range .Result.Entries}}
<tr>
<td>{{.Asset}}</td>
<td><a href="{{.URL}}">{{.Title}}</a></td>
<td>{{.Source}}</td>
<td class="{{tone .Impact}}">{{.Sentiment}} {{printf "%+.2f" .Impact}}</td>
<td><span class="badge">{{.Method}}</span></td>
</tr>
{{end}}
</table>
{{else}}
<p>No analysis has been run yet.</p>
{{end}}
<script>
const log = document.getElementById("log");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/api/v1/ws");
ws.onmessage = (ev) => {
  const msg = JSON.parse(ev.data);
  if (msg.type === "progress") {
    log.textContent += msg.data.asset + ": " + msg.data.stage + " (" + msg.data.count + ")\n";
  } else if (msg.type === "complete") {
    location.reload();
  }
};
document.getElementById("run").addEventListener("submit", async (ev) => {
  ev.preventDefault();
  log.textContent = "";
  const assets = ev.target.assets.value.split(",").map(s => s.trim()).filter(Boolean);
  const resp = await fetch("/api/v1/analyze", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({assets}),
  });
  const body = await resp.json();
  if (!body.success) log.textContent = "error: " + body.error;
});
</script>
</body>
</html>
`))

type dashboardData struct {
	Result *models.AnalysisResult
	Assets []models.AssetMetrics
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	data := dashboardData{Result: last}
	if last != nil {
		for _, m := range last.Portfolio.Assets {
			data.Assets = append(data.Assets, m)
		}
		sort.Slice(data.Assets, func(i, j int) bool {
			return data.Assets[i].Asset < data.Assets[j].Asset
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, data); err != nil {
		s.log.WithError(err).Error("dashboard render failed")
	}
}
