package reporter

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"alfredoptarigan/job-autopilot/internal/models"
)

// Reporter pushes pipeline outcome notifications to the operator. All
// methods are best effort: a notification failure never affects the
// application's state.
type Reporter interface {
	ApplicationApplied(app *models.Application, job *models.Job)
	ApplicationFailed(app *models.Application, job *models.Job, reason string)
	BudgetExceeded(userID string)
}

type telegramReporter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramReporter connects to the Telegram bot API. An empty token
// returns a no-op reporter so the pipeline runs unchanged without one.
func NewTelegramReporter(botToken string, chatID int64) Reporter {
	if botToken == "" || chatID == 0 {
		log.Println("ℹ️  Telegram reporting disabled (no token configured)")
		return &noopReporter{}
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		log.Printf("⚠️  Failed to connect Telegram bot, reporting disabled: %v\n", err)
		return &noopReporter{}
	}

	log.Printf("✅ Telegram reporter connected as @%s\n", bot.Self.UserName)
	return &telegramReporter{bot: bot, chatID: chatID}
}

// ApplicationApplied implements Reporter.
func (r *telegramReporter) ApplicationApplied(app *models.Application, job *models.Job) {
	title, company := jobLabel(job)
	r.send(fmt.Sprintf("✅ Applied: %s at %s\nApplication: %s", title, company, app.ID))
}

// ApplicationFailed implements Reporter.
func (r *telegramReporter) ApplicationFailed(app *models.Application, job *models.Job, reason string) {
	title, company := jobLabel(job)
	r.send(fmt.Sprintf("❌ Application failed: %s at %s\nApplication: %s\nReason: %s",
		title, company, app.ID, reason))
}

// BudgetExceeded implements Reporter.
func (r *telegramReporter) BudgetExceeded(userID string) {
	r.send(fmt.Sprintf("💸 Budget ceiling reached for user %s; generation paused until the next period", userID))
}

func (r *telegramReporter) send(text string) {
	msg := tgbotapi.NewMessage(r.chatID, text)
	if _, err := r.bot.Send(msg); err != nil {
		log.Printf("⚠️  Failed to send Telegram notification: %v\n", err)
	}
}

func jobLabel(job *models.Job) (title, company string) {
	title, company = "unknown position", "unknown company"
	if job != nil {
		if job.Title != "" {
			title = job.Title
		}
		if job.Company != "" {
			company = job.Company
		}
	}
	return title, company
}

type noopReporter struct{}

func (*noopReporter) ApplicationApplied(*models.Application, *models.Job)        {}
func (*noopReporter) ApplicationFailed(*models.Application, *models.Job, string) {}
func (*noopReporter) BudgetExceeded(string)                                      {}
