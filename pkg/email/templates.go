package email

import "fmt"

func MagicLinkTemplate(name, linkURL string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<div style="max-width: 560px; margin: 0 auto; padding: 24px;">
		<h2>Sign in to your account</h2>
		<p>Hi %s,</p>
		<p>Click the button below to sign in. The link is valid for 10 minutes and can be used once.</p>
		<p style="margin: 32px 0;">
			<a href="%s" style="background: #2563eb; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 6px;">Sign In</a>
		</p>
		<p>If you did not request this link, you can safely ignore this email.</p>
	</div>
</body>
</html>`, name, linkURL)
}

func PasswordResetTemplate(name, linkURL string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<div style="max-width: 560px; margin: 0 auto; padding: 24px;">
		<h2>Reset your password</h2>
		<p>Hi %s,</p>
		<p>Click the button below to choose a new password. The link is valid for 10 minutes and can be used once.</p>
		<p style="margin: 32px 0;">
			<a href="%s" style="background: #2563eb; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 6px;">Reset Password</a>
		</p>
		<p>If you did not request a reset, you can safely ignore this email.</p>
	</div>
</body>
</html>`, name, linkURL)
}

func SecurityAlertTemplate(name, eventKind, detail string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<div style="max-width: 560px; margin: 0 auto; padding: 24px;">
		<h2 style="color: #dc2626;">Security alert: %s</h2>
		<p>Hi %s,</p>
		<p>%s</p>
		<p>If this was you, no action is needed. Otherwise we recommend changing your password and reviewing your active sessions.</p>
	</div>
</body>
</html>`, eventKind, name, detail)
}

func PasswordChangedTemplate(name string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<div style="max-width: 560px; margin: 0 auto; padding: 24px;">
		<h2>Your password was changed</h2>
		<p>Hi %s,</p>
		<p>Your password was changed and all existing sessions were signed out.</p>
		<p>If you did not make this change, contact support immediately.</p>
	</div>
</body>
</html>`, name)
}
