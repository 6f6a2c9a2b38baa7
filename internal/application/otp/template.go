package otp

import "fmt"

// Mail templates for the verification and reset flows. Kept as plain format
// strings; the rendered body is dispatched as text/html.

const verifyEmailSubject = "Verify your email - Action Required"

const verifyEmailTemplate = `
<div style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #f4f7fa; padding: 30px; text-align: center;">
  <div style="max-width: 500px; margin: auto; background: #ffffff; border-radius: 10px; padding: 25px; box-shadow: 0 4px 15px rgba(0,0,0,0.1);">
    <h2 style="color: #333333;">Verify Your Email</h2>
    <p style="color: #555; font-size: 15px;">
      Hello <b>%s</b>,<br/>
      Please use the following One-Time Password (OTP) to verify your email address:
    </p>
    <div style="margin: 20px 0; font-size: 24px; font-weight: bold; color: #2c7be5; letter-spacing: 2px;">%s</div>
    <p style="color: #999; font-size: 13px;">
      This OTP will expire in <b>%d minutes</b>. Do not share it with anyone for your security.
    </p>
    <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;" />
    <p style="color: #aaa; font-size: 12px;">
      If you didn't request this, please ignore this email.
    </p>
  </div>
</div>`

const resetPasswordSubject = "Reset Your Password - Action Required"

const resetPasswordTemplate = `
<div style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #f4f7fa; padding: 30px; text-align: center;">
  <div style="max-width: 580px; margin: auto; background: #ffffff; border-radius: 10px; padding: 28px; box-shadow: 0 4px 15px rgba(0,0,0,0.1); text-align: left;">
    <h2 style="color: #333333; margin-top: 0; text-align: center;">Reset Your Password</h2>
    <p style="color: #555; font-size: 15px;">Hello <b>%s</b>,</p>
    <p style="color: #555; font-size: 15px; line-height: 1.5;">
      We received a request to reset the password for your account. Click the button below to set a new password.
      This link is single-use and will expire in <b>%d minutes</b>.
    </p>
    <div style="text-align: center; margin: 22px 0;">
      <a href="%s" target="_blank" rel="noopener noreferrer"
         style="display: inline-block; padding: 12px 22px; border-radius: 8px; background: #2c7be5; color: #fff; font-weight: 600; text-decoration: none;">
        Reset Password
      </a>
    </div>
    <p style="color: #777; font-size: 13px; word-break: break-word;">
      If the button doesn't work, copy and paste this link into your browser:<br/>
      <a href="%s" target="_blank" rel="noopener noreferrer" style="color: #1b6fd8; text-decoration: none; font-size: 13px;">%s</a>
    </p>
    <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;" />
    <p style="color: #999; font-size: 13px;">
      If you did not request a password reset, you can safely ignore this email — your password will remain unchanged.
    </p>
  </div>
</div>`

func renderVerifyEmail(firstName, code string, ttlMinutes int) string {
	if firstName == "" {
		firstName = "User"
	}
	return fmt.Sprintf(verifyEmailTemplate, firstName, code, ttlMinutes)
}

func renderResetPassword(firstName, link string, ttlMinutes int) string {
	if firstName == "" {
		firstName = "User"
	}
	return fmt.Sprintf(resetPasswordTemplate, firstName, ttlMinutes, link, link, link)
}
