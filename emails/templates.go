package emails

import "html/template"

const layoutTemplate = `{{define "header"}}<div style="max-width:600px;margin:0 auto;padding:20px;font-family:Arial,sans-serif;color:#34495e;">
<div style="text-align:center;margin-bottom:20px;">{{if .LogoURL}}<img src="{{.LogoURL}}" alt="KneeHow健康" style="max-width:150px;">{{else}}<div style="font-size:24px;font-weight:bold;color:#2c3e50;">KneeHow健康</div>{{end}}</div>{{end}}
{{define "button"}}<div style="text-align:center;margin:30px 0;"><a href="{{.URL}}" style="background-color:#3498db;color:white;padding:12px 24px;text-decoration:none;border-radius:4px;display:inline-block;">{{.Label}}</a></div>{{end}}
{{define "footer"}}<div style="margin-top:30px;padding-top:20px;border-top:1px solid #eee;color:#7f8c8d;font-size:12px;"><p>此為系統自動發送的郵件，請勿直接回覆。</p></div></div>{{end}}`

const verificationTemplate = `{{define "verification"}}{{template "header" .}}
<h2 style="color:#2c3e50;text-align:center;">KneeHow健康會員註冊確認</h2>
<p>親愛的 {{.Name}}：</p>
<p>感謝您註冊成為KneeHow健康會員！請點擊下方按鈕啟用您的帳號：</p>
{{template "button" (button .URL "啟用帳號")}}
<p style="color:#7f8c8d;font-size:12px;text-align:center;">此連結將於24小時後失效。若您並未註冊KneeHow健康會員，請忽略此信件。</p>
{{template "footer" .}}{{end}}`

const welcomeTemplate = `{{define "welcome"}}{{template "header" .}}
<h2 style="color:#2c3e50;text-align:center;">歡迎加入KneeHow健康</h2>
<p>親愛的 {{.Name}}：</p>
<p>您的帳號已成功啟用，現在可以：</p>
<ul><li>完善您的個人資料</li><li>開始記錄您的步速數據</li></ul>
{{template "footer" .}}{{end}}`

const resetPasswordTemplate = `{{define "reset_password"}}{{template "header" .}}
<h2 style="color:#2c3e50;text-align:center;">密碼重設</h2>
<p>親愛的 {{.Name}}：</p>
<p>我們收到了您的密碼重設請求。請點擊下方按鈕重設您的密碼：</p>
{{template "button" (button .URL "重設密碼")}}
<p style="color:#7f8c8d;font-size:12px;text-align:center;">此連結將於{{.ExpiresIn}}後失效。若您並未要求重設密碼，請忽略此信件。</p>
{{template "footer" .}}{{end}}`

const passwordChangedTemplate = `{{define "password_changed"}}{{template "header" .}}
<h2 style="color:#2c3e50;text-align:center;">密碼更改通知</h2>
<p>親愛的 {{.Name}}：</p>
<p>您的帳號密碼已於剛才更改。若這不是您本人的操作，請立即聯繫系統管理員。</p>
{{template "footer" .}}{{end}}`

const adminNotificationTemplate = `{{define "admin_notification"}}{{template "header" .}}
<h2 style="color:#2c3e50;text-align:center;">新管理員註冊申請</h2>
<table style="width:100%;border-collapse:collapse;">
<tr><td>申請人</td><td>{{.Name}}</td></tr>
<tr><td>帳號</td><td>{{.Username}}</td></tr>
<tr><td>機關單位</td><td>{{.Organization}}</td></tr>
<tr><td>聯絡電話</td><td>{{.Phone}}</td></tr>
<tr><td>電子郵件</td><td>{{.Email}}</td></tr>
</table>
<p>審核通過後，請將以下驗證碼提供給申請人，首次登入時需輸入：</p>
<p style="font-family:monospace;font-size:14px;word-break:break-all;background:#f4f6f7;padding:10px;">{{.Token}}</p>
{{template "button" (button .URL "前往驗證管理員帳號")}}
{{template "footer" .}}{{end}}`

const adminConfirmationTemplate = `{{define "admin_confirmation"}}{{template "header" .}}
<h2 style="color:#2c3e50;text-align:center;">管理員註冊確認</h2>
<p>親愛的 {{.Name}}：</p>
<p>我們已收到您的管理員帳號（{{.Username}}）註冊申請。系統管理員審核後會提供驗證碼，請於首次登入時輸入。</p>
{{template "button" (button .URL "前往驗證頁面")}}
{{template "footer" .}}{{end}}`

type buttonData struct {
	URL   string
	Label string
}

func parseTemplates() *template.Template {
	funcs := template.FuncMap{
		"button": func(url, label string) buttonData { return buttonData{URL: url, Label: label} },
	}
	t := template.New("emails").Funcs(funcs)
	for _, src := range []string{
		layoutTemplate,
		verificationTemplate,
		welcomeTemplate,
		resetPasswordTemplate,
		passwordChangedTemplate,
		adminNotificationTemplate,
		adminConfirmationTemplate,
	} {
		template.Must(t.Parse(src))
	}
	return t
}
