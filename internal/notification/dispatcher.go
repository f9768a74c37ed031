package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"myme/internal/account"
	"myme/internal/logger"
	"myme/internal/metrics"
)

const (
	queueKey    = "notifications"
	failedKey   = "notifications:failed"
	maxAttempts = 3
)

type Job struct {
	UserID  uuid.UUID `json:"user_id"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Mailer delivers one message. SMTPMailer is the production implementation.
type Mailer interface {
	Send(to, name, subject, body string) error
}

type Dispatcher struct {
	redis      *redis.Client
	dir        account.Directory
	mailer     Mailer
	store      Store
	retryDelay time.Duration
}

func NewDispatcher(rdb *redis.Client, dir account.Directory, mailer Mailer, store Store) *Dispatcher {
	return &Dispatcher{
		redis:      rdb,
		dir:        dir,
		mailer:     mailer,
		store:      store,
		retryDelay: 5 * time.Second,
	}
}

// Notify stores the in-app copy of a message and queues its e-mail delivery.
// Callers treat it as fire-and-forget: an error here is logged by the caller
// and never undoes their work. A failed insert does not stop the e-mail.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, title, body string) error {
	var stored error
	if err := d.store.Create(ctx, &Notification{UserID: userID, Title: title, Content: body}); err != nil {
		metrics.RecordNotification("store_failed")
		logger.Error("failed to store notification", "user_id", userID, "error", err)
		stored = fmt.Errorf("store notification for %s: %w", userID, err)
	}

	job := Job{
		UserID:  userID,
		Title:   title,
		Body:    body,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := d.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		metrics.RecordNotification("queue_failed")
		return fmt.Errorf("queue notification for %s: %w", userID, err)
	}

	metrics.RecordNotification("queued")
	logger.Debug("notification queued", "user_id", userID, "title", title)
	return stored
}

// List returns the caller's stored notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return d.store.ListForUser(ctx, userID, limit, offset)
}

func (d *Dispatcher) Start(ctx context.Context) {
	logger.Info("notification dispatcher started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("notification dispatcher stopped")
			return
		default:
			d.processNext(ctx)
		}
	}
}

func (d *Dispatcher) processNext(ctx context.Context) {
	result, err := d.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Error("bad notification payload", "error", err)
		return
	}

	d.deliver(ctx, job)
}

func (d *Dispatcher) deliver(ctx context.Context, job Job) {
	job.Tries++

	user, err := d.dir.FindUserByID(ctx, job.UserID)
	if errors.Is(err, account.ErrUserNotFound) {
		logger.Warn("dropping notification for unknown user", "user_id", job.UserID)
		d.saveFailed(ctx, job, err)
		return
	}
	if err == nil {
		err = d.mailer.Send(user.Email, user.Name, job.Title, job.Body)
	}
	if err == nil {
		metrics.RecordNotification("sent")
		logger.Info("notification sent", "user_id", job.UserID, "attempt", job.Tries)
		return
	}

	logger.Error("failed to deliver notification", "user_id", job.UserID, "attempt", job.Tries, "error", err)
	if job.Tries >= maxAttempts {
		d.saveFailed(ctx, job, err)
		return
	}

	if d.retryDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(d.retryDelay):
		}
	}
	data, _ := json.Marshal(job)
	if err := d.redis.LPush(context.WithoutCancel(ctx), queueKey, data).Err(); err != nil {
		logger.Error("failed to requeue notification", "user_id", job.UserID, "error", err)
	}
}

func (d *Dispatcher) saveFailed(ctx context.Context, job Job, cause error) {
	metrics.RecordNotification("failed")
	failed := map[string]any{
		"job":   job,
		"error": cause.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	if err := d.redis.LPush(context.WithoutCancel(ctx), failedKey, data).Err(); err != nil {
		logger.Error("failed to record dead notification", "user_id", job.UserID, "error", err)
		return
	}
	logger.Error("notification moved to failed queue", "user_id", job.UserID, "attempts", job.Tries)
}

func (d *Dispatcher) QueueLength(ctx context.Context) int64 {
	length, _ := d.redis.LLen(ctx, queueKey).Result()
	metrics.NotificationQueueLength.Set(float64(length))
	return length
}

type SMTPMailer struct {
	From     string
	FromName string
	Host     string
	Port     string
	User     string
	Pass     string
}

func (m SMTPMailer) Send(to, name, subject, body string) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", m.FromName, m.From)
	message += fmt.Sprintf("To: %s <%s>\r\n", name, to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "\r\n" + body

	var auth smtp.Auth
	if m.User != "" && m.Pass != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}

	return smtp.SendMail(m.Host+":"+m.Port, auth, m.From, []string{to}, []byte(message))
}
