package mail

import (
	"fmt"
	"html"
)

// Message is a rendered email with both HTML and plain-text bodies, sent as
// multipart/alternative so every client renders something.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Welcome renders the sign-up greeting. siteURL points the dashboard links at
// the deployment the recipient signed up on.
func Welcome(firstName, siteURL string) Message {
	name := html.EscapeString(firstName)
	dashboard := siteURL + "/dashboard"
	return Message{
		Subject: fmt.Sprintf("🎉 Welcome to Synk, %s!", firstName),
		HTML: fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="margin: 0; padding: 0; font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; background-color: #f8fafc;">
    <div style="max-width: 600px; margin: 40px auto; background-color: #ffffff; border-radius: 16px; padding: 40px 32px;">
      <h1 style="margin: 0 0 16px 0; color: #0f172a; font-size: 32px; text-align: center;">Welcome to Synk! 🎉</h1>
      <p style="margin: 0 0 8px 0; color: #334155; font-size: 18px; text-align: center;">Hey %s!</p>
      <p style="margin: 0 0 32px 0; color: #64748b; font-size: 16px; text-align: center;">
        You're all set! Get ready to supercharge your productivity and stay on top of everything that matters. 🚀
      </p>
      <div style="background-color: #f8fafc; border-radius: 12px; padding: 24px; margin-bottom: 32px;">
        <h2 style="margin: 0 0 16px 0; color: #0f172a; font-size: 18px; text-align: center;">What's inside? ✨</h2>
        <p style="margin: 0; color: #64748b; font-size: 14px; line-height: 1.8;">
          ✅ <strong style="color: #0f172a;">Smart Tasks</strong> – prioritize and conquer your to-dos<br>
          📝 <strong style="color: #0f172a;">Rich Notes</strong> – capture ideas in markdown<br>
          📁 <strong style="color: #0f172a;">Secure Files</strong> – store everything safely<br>
          📅 <strong style="color: #0f172a;">Event Planner</strong> – never miss a moment
        </p>
      </div>
      <p style="text-align: center; margin: 0 0 32px 0;">
        <a href="%s" style="display: inline-block; padding: 16px 40px; background-color: #0ea5e9; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 600; border-radius: 12px;">
          Launch Your Dashboard →
        </a>
      </p>
      <p style="margin: 0; color: #64748b; font-size: 15px; text-align: center;">
        We're here to help you stay organized and productive. Let's do this! 💪
      </p>
    </div>
  </body>
</html>`, name, dashboard),
		Text: fmt.Sprintf(`Welcome to Synk, %s!

Thank you for signing up for Synk - your all-in-one productivity hub!

Here's what you can do with Synk:
✅ Manage tasks with priorities and deadlines
📝 Write notes with markdown support
📁 Store files securely in the cloud
📅 Plan events with reminders

Get started: %s`, firstName, dashboard),
	}
}

// TaskReminder renders a due-date nudge for one task.
func TaskReminder(firstName, taskTitle, dueDate, siteURL string) Message {
	tasksURL := siteURL + "/dashboard/tasks"
	return Message{
		Subject: fmt.Sprintf("⏰ Reminder: %q is due soon", taskTitle),
		HTML: fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f9fafb;">
    <div style="max-width: 600px; margin: 40px auto; background-color: white; border-radius: 8px; padding: 40px;">
      <h2 style="color: #1f2937; margin-bottom: 20px;">Hi %s! 👋</h2>
      <p style="color: #4b5563; font-size: 16px; line-height: 1.6;">
        This is a reminder that your task <strong>%q</strong> is due on %s.
      </p>
      <p style="margin: 30px 0;">
        <a href="%s" style="display: inline-block; background-color: #0ea5e9; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; font-weight: 600;">View Task</a>
      </p>
      <p style="color: #6b7280; font-size: 14px;">Stay productive with Synk! ✨</p>
    </div>
  </body>
</html>`, html.EscapeString(firstName), html.EscapeString(taskTitle), html.EscapeString(dueDate), tasksURL),
		Text: fmt.Sprintf(`Hi %s!

This is a reminder that your task %q is due on %s.

View your tasks: %s`, firstName, taskTitle, dueDate, tasksURL),
	}
}

// DigestStats is a week's worth of activity counts.
type DigestStats struct {
	Tasks  int
	Notes  int
	Files  int
	Events int
}

// WeeklyDigest renders the weekly activity summary.
func WeeklyDigest(firstName string, stats DigestStats) Message {
	return Message{
		Subject: "📊 Your Weekly Synk Digest",
		HTML: fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f9fafb;">
    <div style="max-width: 600px; margin: 40px auto; background-color: white; border-radius: 8px; padding: 40px;">
      <h2 style="color: #1f2937; margin-bottom: 20px;">📊 Your Weekly Summary</h2>
      <p style="color: #4b5563; font-size: 16px; margin-bottom: 30px;">Hi %s! Here's what you accomplished this week:</p>
      <div style="background-color: #f9fafb; border-radius: 6px; padding: 20px; margin-bottom: 30px; color: #1f2937; line-height: 2;">
        ✅ <strong>%d tasks completed</strong><br>
        📝 <strong>%d notes created</strong><br>
        📁 <strong>%d files uploaded</strong><br>
        📅 <strong>%d events scheduled</strong>
      </div>
      <p style="color: #4b5563; font-size: 16px;">Keep up the great work! 🎉</p>
    </div>
  </body>
</html>`, html.EscapeString(firstName), stats.Tasks, stats.Notes, stats.Files, stats.Events),
		Text: fmt.Sprintf(`Your Weekly Summary

Hi %s! Here's what you accomplished this week:
✅ %d tasks completed
📝 %d notes created
📁 %d files uploaded
📅 %d events scheduled

Keep up the great work! 🎉`, firstName, stats.Tasks, stats.Notes, stats.Files, stats.Events),
	}
}
