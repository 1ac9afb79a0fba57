package reconcile

import (
	"context"
	"encoding/json"

	"github.com/magabrotheeeer/newsletter-basket/internal/models"
	"github.com/magabrotheeeer/newsletter-basket/internal/tasks"
)

// Имена асинхронных задач. HTTP-слой ставит задачи в очередь по этим
// именам, воркер выполняет их методами Engine.
const (
	TaskUpdateUser          = "update_user"
	TaskConfirmUser         = "confirm_user"
	TaskAddSMSUser          = "add_sms_user"
	TaskSendRecoveryMessage = "send_recovery_message"
	TaskUpdateCustomUnsub   = "update_custom_unsub"
	TaskUpdateAccountInfo   = "update_account_info"
)

// ConfirmArgs — аргументы задачи confirm_user.
type ConfirmArgs struct {
	Token string `json:"token"`
}

// SMSArgs — аргументы задачи add_sms_user.
type SMSArgs struct {
	Template string `json:"template"`
	Phone    string `json:"phone"`
	Optin    bool   `json:"optin"`
}

// RecoveryArgs — аргументы задачи send_recovery_message.
type RecoveryArgs struct {
	Email string `json:"email"`
}

// CustomUnsubArgs — аргументы задачи update_custom_unsub.
type CustomUnsubArgs struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// AccountInfoArgs — аргументы задачи update_account_info.
type AccountInfoArgs struct {
	Email     string `json:"email"`
	AccountID string `json:"account_id"`
	Lang      string `json:"lang,omitempty"`
}

// RegisterTasks регистрирует обработчики всех задач сверки.
// Нечитаемые аргументы фиксируются как окончательный отказ: повтор
// с теми же байтами не поможет.
func RegisterTasks(r *tasks.Runner, e *Engine) {
	r.Register(TaskUpdateUser, func(ctx context.Context, raw json.RawMessage) error {
		var args models.UpdateRequest
		if err := json.Unmarshal(raw, &args); err != nil {
			return tasks.Terminalf("unmarshal %s args: %v", TaskUpdateUser, err)
		}
		_, err := e.UpdateUser(ctx, args)
		return err
	})

	r.Register(TaskConfirmUser, func(ctx context.Context, raw json.RawMessage) error {
		var args ConfirmArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return tasks.Terminalf("unmarshal %s args: %v", TaskConfirmUser, err)
		}
		return e.ConfirmUser(ctx, args.Token, nil)
	})

	r.Register(TaskAddSMSUser, func(ctx context.Context, raw json.RawMessage) error {
		var args SMSArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return tasks.Terminalf("unmarshal %s args: %v", TaskAddSMSUser, err)
		}
		return e.AddSMSUser(ctx, args.Template, args.Phone, args.Optin)
	})

	r.Register(TaskSendRecoveryMessage, func(ctx context.Context, raw json.RawMessage) error {
		var args RecoveryArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return tasks.Terminalf("unmarshal %s args: %v", TaskSendRecoveryMessage, err)
		}
		return e.SendRecoveryMessage(ctx, args.Email)
	})

	r.Register(TaskUpdateCustomUnsub, func(ctx context.Context, raw json.RawMessage) error {
		var args CustomUnsubArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return tasks.Terminalf("unmarshal %s args: %v", TaskUpdateCustomUnsub, err)
		}
		return e.UpdateCustomUnsub(ctx, args.Token, args.Reason)
	})

	r.Register(TaskUpdateAccountInfo, func(ctx context.Context, raw json.RawMessage) error {
		var args AccountInfoArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return tasks.Terminalf("unmarshal %s args: %v", TaskUpdateAccountInfo, err)
		}
		return e.UpdateAccountInfo(ctx, args.Email, args.AccountID, args.Lang)
	})
}
