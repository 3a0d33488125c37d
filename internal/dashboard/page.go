package dashboard

import "net/http"

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Skydash: Customer Query Analytics</title>
<style>
  :root {
    --bg: #f8fafc;
    --surface: #ffffff;
    --border: #e2e8f0;
    --text: #0f172a;
    --text-dim: #64748b;
    --sky: #0ea5e9;
    --green: #10b981;
    --amber: #f59e0b;
    --red: #f43f5e;
    --violet: #8b5cf6;
  }
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif;
    background: var(--bg);
    color: var(--text);
    font-size: 14px;
    line-height: 1.5;
    padding: 16px;
  }
  header {
    display: flex;
    align-items: center;
    justify-content: space-between;
    margin-bottom: 16px;
    padding-bottom: 12px;
    border-bottom: 1px solid var(--border);
  }
  header h1 { font-size: 20px; font-weight: 600; }
  header h1 span { color: var(--sky); }
  .meta { font-size: 12px; color: var(--text-dim); }
  button {
    background: var(--sky);
    color: #fff;
    border: none;
    border-radius: 6px;
    padding: 6px 14px;
    font-size: 13px;
    cursor: pointer;
  }
  button.secondary { background: var(--border); color: var(--text); }
  button:disabled { opacity: 0.5; cursor: default; }

  .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; }
  @media (max-width: 900px) { .grid { grid-template-columns: 1fr; } }
  .card {
    background: var(--surface);
    border: 1px solid var(--border);
    border-radius: 8px;
    overflow: hidden;
  }
  .card-header {
    padding: 10px 14px;
    border-bottom: 1px solid var(--border);
    font-weight: 600;
    font-size: 13px;
    text-transform: uppercase;
    letter-spacing: 0.5px;
    color: var(--text-dim);
  }
  .card-body { padding: 12px 14px; }
  .full-width { grid-column: 1 / -1; }
  .empty { color: var(--text-dim); font-style: italic; }

  .drop {
    border: 2px dashed var(--border);
    border-radius: 8px;
    padding: 24px;
    text-align: center;
    color: var(--text-dim);
  }
  .drop.over { border-color: var(--sky); color: var(--sky); }

  .progress-bar { width: 100%; height: 8px; background: var(--border); border-radius: 4px; overflow: hidden; margin: 8px 0; }
  .progress-fill { height: 100%; background: var(--sky); transition: width 0.3s; }
  .metric .progress-fill.m0 { background: var(--sky); }
  .metric .progress-fill.m1 { background: var(--green); }
  .metric .progress-fill.m2 { background: var(--amber); }
  .metric .progress-fill.m3 { background: var(--red); }

  .kpis { display: grid; grid-template-columns: repeat(4, 1fr); gap: 12px; }
  .kpi { background: var(--surface); border: 1px solid var(--border); border-radius: 8px; padding: 12px 14px; }
  .kpi .label { font-size: 11px; text-transform: uppercase; color: var(--text-dim); }
  .kpi .value { font-size: 24px; font-weight: 700; }

  table { width: 100%; border-collapse: collapse; }
  th {
    text-align: left;
    padding: 8px 14px;
    font-size: 11px;
    font-weight: 600;
    color: var(--text-dim);
    text-transform: uppercase;
    border-bottom: 1px solid var(--border);
  }
  td { padding: 8px 14px; border-bottom: 1px solid var(--border); font-size: 13px; vertical-align: top; }
  tr:last-child td { border-bottom: none; }

  .badge { display: inline-block; padding: 2px 8px; border-radius: 12px; font-size: 11px; font-weight: 600; text-transform: uppercase; }
  .badge.completed { background: #d1fae5; color: #047857; }
  .badge.failed { background: #ffe4e6; color: #be123c; }
  .badge.uploading, .badge.polling { background: #e0f2fe; color: #0369a1; }
  .badge.idle { background: var(--border); color: var(--text-dim); }

  .insight { padding: 8px 12px; border-radius: 6px; margin-bottom: 6px; }
  .insight.info { background: #e0f2fe; }
  .insight.success { background: #d1fae5; }
  .insight.warning { background: #fef3c7; }
  .insight.danger { background: #ffe4e6; }
  .charts img { max-width: 100%; }

  #toasts { position: fixed; top: 16px; right: 16px; display: flex; flex-direction: column; gap: 8px; }
  .toast { padding: 10px 14px; border-radius: 6px; color: #fff; box-shadow: 0 2px 6px rgba(0,0,0,0.15); }
  .toast.success { background: var(--green); }
  .toast.error { background: var(--red); }
  .toast.info { background: var(--sky); }
</style>
</head>
<body>
<header>
  <h1>Sky<span>dash</span> Customer Query Analytics</h1>
  <div class="meta">
    <span id="updated">connecting...</span>
    <button class="secondary" id="reset" onclick="resetSession()">New analysis</button>
    <button id="download" onclick="downloadReport()" disabled>Download report</button>
  </div>
</header>

<div class="grid">
  <div class="card full-width" id="upload-card">
    <div class="card-header">Upload</div>
    <div class="card-body">
      <div class="drop" id="drop">
        Drop an .xlsx or .csv file here, or <input type="file" id="file" accept=".xlsx,.csv">
      </div>
    </div>
  </div>

  <div class="card full-width" id="status-card" style="display:none">
    <div class="card-header">Status <span class="badge" id="phase"></span></div>
    <div class="card-body">
      <div id="status-file"></div>
      <div class="progress-bar"><div class="progress-fill" id="progress" style="width:0%"></div></div>
      <div class="meta" id="status-step"></div>
    </div>
  </div>

  <div class="full-width" id="results" style="display:none">
    <div class="kpis" id="kpis"></div>
  </div>
  <div class="card full-width" id="topics-card" style="display:none">
    <div class="card-header">Topics</div>
    <div class="card-body"><table id="topics"></table></div>
  </div>
  <div class="card" id="entities-card" style="display:none">
    <div class="card-header">Top Entities</div>
    <div class="card-body" id="entities"></div>
  </div>
  <div class="card" id="metrics-card" style="display:none">
    <div class="card-header">Quality Metrics</div>
    <div class="card-body" id="metrics"></div>
  </div>
  <div class="card full-width" id="insights-card" style="display:none">
    <div class="card-header">Key Insights</div>
    <div class="card-body" id="insights"></div>
  </div>
  <div class="card full-width charts" id="charts-card" style="display:none">
    <div class="card-header">Charts</div>
    <div class="card-body" id="charts"></div>
  </div>

  <div class="card full-width">
    <div class="card-header">History</div>
    <div class="card-body"><table id="history"></table></div>
  </div>
</div>
<div id="toasts"></div>

<script>
const pollMs = 2000;
let lastRun = '';
let lastPhase = '';

function esc(s) {
  return String(s == null ? '' : s).replace(/[&<>"']/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[c]));
}

function fmt(n) { return Number(n || 0).toLocaleString(); }

function toast(level, msg) {
  const el = document.createElement('div');
  el.className = 'toast ' + level;
  el.textContent = msg;
  document.getElementById('toasts').appendChild(el);
  setTimeout(() => el.remove(), 5000);
}

function show(id, on) { document.getElementById(id).style.display = on ? '' : 'none'; }

async function upload(file) {
  const body = new FormData();
  body.append('file', file);
  const resp = await fetch('/api/upload', {method: 'POST', body});
  const data = await resp.json();
  if (resp.status === 202) {
    toast('success', 'File uploaded: ' + data.filename);
  } else {
    toast('error', data.error || 'Upload failed. Please try again.');
  }
  fetchSession();
}

async function resetSession() {
  await fetch('/api/reset', {method: 'POST'});
  lastRun = '';
  fetchSession();
}

function downloadReport() {
  window.location = '/api/report';
}

function renderStatus(s) {
  const busy = s.phase === 'uploading' || s.phase === 'polling';
  show('upload-card', s.phase === 'idle' || s.phase === 'failed');
  show('status-card', s.phase !== 'idle');
  const phase = document.getElementById('phase');
  phase.className = 'badge ' + s.phase;
  phase.textContent = s.phase;
  document.getElementById('status-file').textContent = s.filename || '';
  document.getElementById('progress').style.width = (s.progress || 0) + '%';
  let step = s.current_step || '';
  if (s.phase === 'failed') step = s.error || 'Analysis failed';
  if (s.elapsed) step += (step ? ' · ' : '') + s.elapsed;
  document.getElementById('status-step').textContent = step;
  document.getElementById('download').disabled = s.phase !== 'completed';
  document.getElementById('reset').disabled = busy;
}

function renderSummary(sum) {
  const on = !!sum;
  ['results', 'topics-card', 'entities-card', 'metrics-card', 'insights-card', 'charts-card'].forEach(id => show(id, on));
  if (!on) return;

  document.getElementById('kpis').innerHTML = sum.kpis.map(k =>
    '<div class="kpi"><div class="label">' + esc(k.label) + '</div><div class="value">' + esc(k.value) + '</div></div>'
  ).join('');

  const topics = document.getElementById('topics');
  if (!sum.topics.length) {
    topics.innerHTML = '<tr><td class="empty">No topics found</td></tr>';
  } else {
    topics.innerHTML = '<tr><th>#</th><th>Topic</th><th>Description</th><th>Queries</th><th>Share</th><th>Examples</th></tr>' +
      sum.topics.map(t => '<tr><td>#' + t.rank + '</td><td>' + esc(t.topic_name) + '</td><td>' + esc(t.description) +
        '</td><td>' + fmt(t.count) + '</td><td>' + Number(t.percentage).toFixed(1) + '%</td><td title="' +
        esc((t.representative_queries || []).join('\n')) + '">View ' + (t.representative_queries || []).length + ' examples</td></tr>'
      ).join('');
  }

  const ents = sum.entities || [];
  const maxCount = ents.length ? ents[0].count : 1;
  document.getElementById('entities').innerHTML = ents.length ? ents.map(e =>
    '<div>' + esc(e.label) + ' <span class="meta">' + fmt(e.count) + '</span>' +
    '<div class="progress-bar"><div class="progress-fill" style="width:' + (100 * e.count / maxCount) + '%"></div></div></div>'
  ).join('') : '<div class="empty">No entity data available</div>';

  const metrics = sum.metrics || [];
  document.getElementById('metrics').innerHTML = metrics.length ? metrics.map((m, i) =>
    '<div class="metric">' + esc(m.label) + ' <span class="meta">' + Number(m.value).toFixed(1) + (m.suffix || '') + '</span>' +
    '<div class="progress-bar"><div class="progress-fill m' + i + '" style="width:' + Math.min(100, 100 * m.value / m.max) + '%"></div></div></div>'
  ).join('') : '<div class="empty">No evaluation data available</div>';

  const insights = sum.insights || [];
  show('insights-card', insights.length > 0);
  document.getElementById('insights').innerHTML = insights.map(i =>
    '<div class="insight ' + i.level + '">' + esc(i.text) + '</div>'
  ).join('');

  const charts = sum.charts || [];
  show('charts-card', charts.length > 0);
  document.getElementById('charts').innerHTML = charts.map(src =>
    '<img src="' + src + '?run=' + encodeURIComponent(lastRun) + '">'
  ).join('');
}

async function fetchSession() {
  try {
    const resp = await fetch('/api/session');
    const s = await resp.json();
    if (s.run_id !== lastRun || s.phase !== lastPhase) {
      if (s.phase === 'completed' && lastPhase !== 'completed' && lastPhase !== '') toast('success', 'Analysis complete! Dashboard loaded.');
      if (s.phase === 'failed' && lastPhase !== 'failed' && lastPhase !== '') toast('error', 'Analysis failed: ' + (s.error || ''));
      lastRun = s.run_id || '';
      lastPhase = s.phase;
      renderSummary(s.summary);
      fetchHistory();
    }
    renderStatus(s);
    document.getElementById('updated').textContent = 'updated ' + new Date(s.timestamp).toLocaleTimeString();
  } catch (e) {
    document.getElementById('updated').textContent = 'disconnected';
  }
}

async function fetchHistory() {
  const el = document.getElementById('history');
  const resp = await fetch('/api/history?limit=10');
  if (!resp.ok) {
    el.innerHTML = '<tr><td class="empty">History is not enabled</td></tr>';
    return;
  }
  const data = await resp.json();
  const rows = data.analyses || [];
  el.innerHTML = rows.length ? '<tr><th>File</th><th>Status</th><th>Finished</th><th>Duration</th></tr>' + rows.map(a =>
    '<tr><td>' + esc(a.filename) + '</td><td><span class="badge ' + a.phase + '">' + a.phase + '</span>' +
    (a.error ? ' <span class="meta">' + esc(a.error) + '</span>' : '') + '</td><td>' + esc(a.age) + '</td><td>' + esc(a.duration) + '</td></tr>'
  ).join('') : '<tr><td class="empty">No analyses yet</td></tr>';
}

const drop = document.getElementById('drop');
drop.addEventListener('dragover', e => { e.preventDefault(); drop.classList.add('over'); });
drop.addEventListener('dragleave', () => drop.classList.remove('over'));
drop.addEventListener('drop', e => {
  e.preventDefault();
  drop.classList.remove('over');
  if (e.dataTransfer.files.length) upload(e.dataTransfer.files[0]);
});
document.getElementById('file').addEventListener('change', e => {
  if (e.target.files.length) upload(e.target.files[0]);
  e.target.value = '';
});

fetchSession();
setInterval(fetchSession, pollMs);
</script>
</body>
</html>
`
