package web

// Reward activity dashboard: live ledger feed plus a claim form.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>tradecore</title>
  <link rel="preconnect" href="https://fonts.googleapis.com">
  <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --ink-soft:#9c9c9c;
      --panel:#f6f6f6;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      align-items:center;
      justify-content:center;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      width:min(980px, 96vw);
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      position:relative;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:flex;
      flex-direction:column;
      gap:1.5rem;
    }
    #app::after {
      content:'';
      position:absolute;
      inset:8px;
      border:1px dashed rgba(0,0,0,.15);
      pointer-events:none;
    }
    header { display:flex; justify-content:space-between; align-items:flex-start; gap:1rem; }
    .eyebrow {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.55rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      margin:0;
    }
    .status {
      font-size:.65rem;
      text-transform:uppercase;
      letter-spacing:.1em;
      border:2px solid var(--ink);
      padding:.4rem .9rem;
      background:#ffffff;
      box-shadow:4px 4px 0 rgba(0,0,0,.15);
    }
    .lookup {
      display:flex;
      gap:.6rem;
      flex-wrap:wrap;
    }
    .lookup input {
      flex:1;
      min-width:280px;
      font-family:inherit;
      font-size:.75rem;
      padding:.6rem .8rem;
      border:2px solid var(--ink);
      background:#fff;
    }
    .lookup button {
      font-family:inherit;
      font-size:.65rem;
      text-transform:uppercase;
      letter-spacing:.1em;
      padding:.6rem 1rem;
      border:2px solid var(--ink);
      background:#fff;
      cursor:pointer;
      box-shadow:4px 4px 0 rgba(0,0,0,.15);
    }
    .lookup button:active { box-shadow:none; transform:translate(2px,2px); }
    .balance {
      border:3px solid var(--ink);
      padding:1.2rem;
      background:#fff;
      box-shadow:6px 6px 0 rgba(0,0,0,.12);
    }
    .balance .label {
      font-size:.62rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      color:var(--ink-mid);
    }
    .balance .value {
      margin-top:.8rem;
      font-size:1.8rem;
      font-weight:700;
      letter-spacing:.08em;
    }
    .feed-title {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.15em;
      margin:0;
      padding-bottom:.8rem;
      border-bottom:2px solid var(--ink);
    }
    #feed { display:flex; flex-direction:column; gap:.8rem; max-height:420px; overflow-y:auto; }
    .entry {
      border:2px solid var(--ink);
      padding:.8rem 1rem;
      background:#fff;
      box-shadow:4px 4px 0 rgba(0,0,0,.12);
      font-size:.7rem;
      display:flex;
      justify-content:space-between;
      gap:1rem;
      flex-wrap:wrap;
    }
    .entry .kind { font-weight:700; text-transform:uppercase; letter-spacing:.1em; }
    .entry .kind.CREDIT { color:#1b9aaa; }
    .entry .kind.DEBIT { color:#d7263d; }
    .entry .who { color:var(--ink-mid); word-break:break-all; }
    .empty-state {
      border:2px dashed var(--ink-soft);
      padding:2rem;
      text-align:center;
      font-size:.8rem;
      letter-spacing:.12em;
      text-transform:uppercase;
      color:var(--ink-mid);
    }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <p class="eyebrow">tradecore rewards</p>
      <div id="sse-status" class="status">Connecting…</div>
    </header>
    <div class="lookup">
      <input id="beneficiary" placeholder="beneficiary wallet" />
      <button id="check">Balance</button>
      <button id="claim">Claim</button>
    </div>
    <div class="balance">
      <div class="label">Claimable (lamports)</div>
      <div id="balanceValue" class="value">—</div>
    </div>
    <h3 class="feed-title">Ledger activity</h3>
    <div id="feed">
      <div id="emptyState" class="empty-state">Waiting for ledger entries…</div>
    </div>
  </div>
<script>
const statusEl = document.getElementById('sse-status');
const feed = document.getElementById('feed');
const emptyState = document.getElementById('emptyState');
const balanceValue = document.getElementById('balanceValue');
const beneficiaryInput = document.getElementById('beneficiary');
const MAX_ENTRIES = 100;

const shorten = (addr) => {
  if(!addr || addr.length < 12){ return addr || '—'; }
  return addr.slice(0, 5) + '…' + addr.slice(-5);
};

function renderEntry(entry){
  if(emptyState && emptyState.parentNode){ emptyState.remove(); }
  const row = document.createElement('div');
  row.className = 'entry';
  const kind = document.createElement('span');
  kind.className = 'kind ' + entry.kind;
  kind.textContent = entry.kind + ' ' + entry.change;
  const who = document.createElement('span');
  who.className = 'who';
  who.textContent = shorten(entry.beneficiary) + ' → ' + entry.resulting_balance;
  row.append(kind, who);
  feed.insertBefore(row, feed.firstChild);
  while(feed.children.length > MAX_ENTRIES){
    feed.removeChild(feed.lastChild);
  }
}

function connectSSE(){
  const source = new EventSource('/rewards/stream');
  statusEl.textContent = 'Status: live';
  source.addEventListener('ledger', (event) => {
    try{
      renderEntry(JSON.parse(event.data));
    }catch(err){
      console.error('entry parse', err);
    }
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connectSSE, 2000);
  });
}

async function refreshBalance(){
  const who = beneficiaryInput.value.trim();
  if(!who){ return; }
  const resp = await fetch('/rewards/' + encodeURIComponent(who));
  if(!resp.ok){ balanceValue.textContent = 'error'; return; }
  const data = await resp.json();
  balanceValue.textContent = data.balance;
}

async function claim(){
  const who = beneficiaryInput.value.trim();
  if(!who){ return; }
  const resp = await fetch('/rewards/' + encodeURIComponent(who) + '/claim', { method: 'POST' });
  const data = await resp.json();
  if(resp.ok){
    balanceValue.textContent = '0 (claimed ' + data.amount + ')';
  }else{
    balanceValue.textContent = data.error || 'claim failed';
  }
}

document.getElementById('check').addEventListener('click', refreshBalance);
document.getElementById('claim').addEventListener('click', claim);
connectSSE();
</script>
</body>
</html>`
