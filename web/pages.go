package web

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/myformhq/myform/sys"
)

// The panel ships its pages as embedded templates: a thin layout plus a
// vanilla-JS form builder talking to the JSON API.

const panelTemplates = `
{{define "layout_head"}}
<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>MyForm — {{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#1e1f22;color:#dbdee1;margin:0}
main{max-width:760px;margin:40px auto;padding:0 16px}
a{color:#5865f2}
.card{background:#2b2d31;border-radius:8px;padding:20px;margin:16px 0}
.btn{display:inline-block;background:#5865f2;color:#fff;border:none;border-radius:4px;padding:10px 16px;cursor:pointer;text-decoration:none}
.btn.danger{background:#ed4245}
input,textarea,select{width:100%;box-sizing:border-box;background:#1e1f22;color:#dbdee1;border:1px solid #3f4147;border-radius:4px;padding:8px;margin:4px 0}
label{font-size:.9em;color:#b5bac1}
.q{border-left:3px solid #5865f2;padding-left:10px;margin:10px 0}
</style>
</head>
<body><main><h1>📋 MyForm</h1>
{{end}}

{{define "layout_foot"}}</main></body></html>{{end}}

{{define "dashboard"}}
{{template "layout_head" .}}
<p>Signed in as <b>{{.Username}}</b> — <a href="/logout">log out</a></p>
{{range $id, $name := .Guilds}}
<div class="card"><h3>{{$name}}</h3>
<a class="btn" href="/create/{{$id}}">New form</a>
<a class="btn" href="/premium?guild={{$id}}">Premium</a>
<div data-guild="{{$id}}" class="forms">Loading forms…</div>
</div>
{{else}}<div class="card">No servers where you can manage forms. Invite the bot first.</div>{{end}}
<script>
document.querySelectorAll('.forms').forEach(async el => {
  const guild = el.dataset.guild;
  const res = await fetch('/api/form/' + guild);
  if (!res.ok) { el.textContent = 'Could not load forms.'; return; }
  const forms = await res.json();
  el.innerHTML = forms.length ? '' : 'No forms yet.';
  for (const f of forms) {
    const row = document.createElement('p');
    row.innerHTML = (f.disabled ? '🔴 ' : '🟢 ') + f.title +
      ' — <a href="/edit/' + guild + '/' + f.id + '">edit</a>';
    el.appendChild(row);
  }
});
</script>
{{template "layout_foot" .}}
{{end}}

{{define "editor"}}
{{template "layout_head" .}}
<div class="card">
<h2>{{.Title}}</h2>
<label>Title</label><input id="title">
<label>Embed channel ID</label><input id="embedChannelId">
<label>Response channel ID</label><input id="responseChannelId">
<label>Embed text</label><textarea id="embedText"></textarea>
<label>Button label</label><input id="buttonLabel">
<label><input type="checkbox" id="singleResponse" style="width:auto"> Single response</label><br>
<label><input type="checkbox" id="createThreads" style="width:auto"> Create threads</label><br>
<label><input type="checkbox" id="clartyProtection" style="width:auto"> Clarty protection</label>
<div id="questions"></div>
<button class="btn" type="button" onclick="addQuestion()">Add question</button>
<p><button class="btn" type="button" onclick="save()">Save</button> <span id="status"></span></p>
</div>
<script>
const guildId = {{.GuildID}};
const formId = {{.FormID}};
function addQuestion(q) {
  q = q || {text: '', style: 'SHORT'};
  const div = document.createElement('div');
  div.className = 'q';
  div.innerHTML = '<input class="qtext" placeholder="Question"><select class="qstyle">' +
    '<option value="SHORT">Short answer</option><option value="PARAGRAPH">Paragraph</option></select>' +
    '<button type="button" onclick="this.parentNode.remove()">✕</button>';
  div.querySelector('.qtext').value = q.text;
  div.querySelector('.qstyle').value = q.style;
  document.getElementById('questions').appendChild(div);
}
async function load() {
  if (!formId) { addQuestion(); return; }
  const res = await fetch('/api/form/' + guildId + '/' + formId);
  if (!res.ok) return;
  const f = await res.json();
  for (const k of ['title','embedChannelId','responseChannelId','embedText','buttonLabel'])
    document.getElementById(k).value = f[k] || '';
  for (const k of ['singleResponse','createThreads','clartyProtection'])
    document.getElementById(k).checked = !!f[k];
  f.questions.forEach(addQuestion);
}
async function save() {
  const payload = {
    title: document.getElementById('title').value,
    embedChannelId: document.getElementById('embedChannelId').value,
    responseChannelId: document.getElementById('responseChannelId').value,
    embedText: document.getElementById('embedText').value,
    buttonLabel: document.getElementById('buttonLabel').value,
    singleResponse: document.getElementById('singleResponse').checked,
    createThreads: document.getElementById('createThreads').checked,
    clartyProtection: document.getElementById('clartyProtection').checked,
    cooldownOptions: {enabled: false, durationMinutes: 0},
    reviewOptions: {enabled: false, customMessagesEnabled: false, showStatusMessage: false,
      acceptMessage: '', rejectMessage: '', acceptRoleId: '', rejectRoleId: ''},
    questions: [...document.querySelectorAll('.q')].map(d => ({
      text: d.querySelector('.qtext').value, style: d.querySelector('.qstyle').value}))
  };
  const url = '/api/form/' + guildId + (formId ? '/' + formId : '');
  const res = await fetch(url, {method: 'POST', headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(payload)});
  const out = await res.json();
  document.getElementById('status').textContent = res.ok ? 'Saved ✔' : ('Error: ' + out.error);
  if (res.ok && !formId) window.location = '/success';
}
load();
</script>
{{template "layout_foot" .}}
{{end}}

{{define "notice"}}
{{template "layout_head" .}}
<div class="card"><h2>{{.Heading}}</h2><p>{{.Body}}</p><a class="btn" href="/">Back to dashboard</a></div>
{{template "layout_foot" .}}
{{end}}

{{define "premium"}}
{{template "layout_head" .}}
<div class="card">
<h2>✨ Premium</h2>
<p>Premium removes the form limit and unlocks cooldowns for one server.</p>
<h3>Redeem a gift code</h3>
<input id="code" placeholder="XXXX-XXXX-XXXX-XXXX">
<button class="btn" type="button" onclick="redeem()">Redeem</button> <span id="status"></span>
<h3>Or buy via PayPal</h3>
<form action="https://www.paypal.com/cgi-bin/webscr" method="post">
<input type="hidden" name="cmd" value="_xclick">
<input type="hidden" name="business" value="{{.PayPalBusiness}}">
<input type="hidden" name="item_name" value="MyForm Premium">
<input type="hidden" name="amount" value="4.99">
<input type="hidden" name="currency_code" value="EUR">
<input type="hidden" name="custom" value="{{.GuildID}}">
<input type="hidden" name="notify_url" value="{{.BaseURL}}/api/paypal/ipn">
<button class="btn" type="submit">Buy premium</button>
</form>
</div>
<script>
async function redeem() {
  const res = await fetch('/api/gift-code/redeem', {method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({code: document.getElementById('code').value, guildId: {{.GuildID}}})});
  const out = await res.json();
  document.getElementById('status').textContent = res.ok ? 'Premium active ✔' : out.error;
}
</script>
{{template "layout_foot" .}}
{{end}}

{{define "legal"}}
{{template "layout_head" .}}
<div class="card"><h2>{{.Heading}}</h2>{{.BodyHTML}}</div>
{{template "layout_foot" .}}
{{end}}
`

func loadTemplates() *template.Template {
	return template.Must(template.New("panel").Parse(panelTemplates))
}

func renderError(c *gin.Context, status int, message string) {
	c.HTML(status, "notice", gin.H{"Title": "Error", "Heading": "Something went wrong", "Body": message})
}

func handleDashboard(c *gin.Context) {
	session := currentSession(c)
	c.HTML(http.StatusOK, "dashboard", gin.H{
		"Title":    "Dashboard",
		"Username": session.Username,
		"Guilds":   session.Guilds,
	})
}

func handleCreatePage(c *gin.Context) {
	session := currentSession(c)
	guildID := c.Param("guildId")
	if !session.canManage(guildID) {
		renderError(c, http.StatusForbidden, "You cannot manage this server.")
		return
	}
	c.HTML(http.StatusOK, "editor", gin.H{
		"Title":   "New form",
		"GuildID": guildID,
		"FormID":  "",
	})
}

func handleEditPage(c *gin.Context) {
	session := currentSession(c)
	guildID := c.Param("guildId")
	if !session.canManage(guildID) {
		renderError(c, http.StatusForbidden, "You cannot manage this server.")
		return
	}
	c.HTML(http.StatusOK, "editor", gin.H{
		"Title":   "Edit form",
		"GuildID": guildID,
		"FormID":  c.Param("formId"),
	})
}

func handleSuccessPage(c *gin.Context) {
	c.HTML(http.StatusOK, "notice", gin.H{
		"Title": "Saved", "Heading": "✅ Form saved",
		"Body": "Your form was saved. Publish or edit it from your server or this panel.",
	})
}

func handleBlacklistedPage(c *gin.Context) {
	c.HTML(http.StatusOK, "notice", gin.H{
		"Title": "Blacklisted", "Heading": "🚫 Access denied",
		"Body": "You are blacklisted from using MyForm.",
	})
}

func handlePremiumPage(c *gin.Context) {
	session := currentSession(c)
	guildID := c.Query("guild")
	if guildID != "" && !session.canManage(guildID) {
		renderError(c, http.StatusForbidden, "You cannot manage this server.")
		return
	}
	c.HTML(http.StatusOK, "premium", gin.H{
		"Title":          "Premium",
		"GuildID":        guildID,
		"BaseURL":        sys.GlobalConfig.BaseURL,
		"PayPalBusiness": sys.GlobalConfig.PayPalBusiness,
	})
}

func handleTermsPage(c *gin.Context) {
	c.HTML(http.StatusOK, "legal", gin.H{
		"Title": "Terms", "Heading": "Terms of Service",
		"BodyHTML": template.HTML("<p>MyForm is provided as-is. Do not use it to collect sensitive personal data. Abuse leads to a global blacklist entry.</p>"),
	})
}

func handlePrivacyPage(c *gin.Context) {
	c.HTML(http.StatusOK, "legal", gin.H{
		"Title": "Privacy", "Heading": "Privacy Policy",
		"BodyHTML": template.HTML("<p>MyForm stores form definitions, form answers, and vote credits. Response data is deleted with its message. Contact the support server for removal requests.</p>"),
	})
}
