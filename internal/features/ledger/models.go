// Package ledger — models.go описывает аккаунты и журнал транзакций.
//
// Аккаунт хранит два баланса: credits (сообщения для раскладов) и
// advice_credits (купленные советы). Любое изменение баланса сопровождается
// ровно одной записью в transactions, поэтому сумма начислений минус сумма
// списаний всегда равна текущему балансу.
package ledger

import "time"

// Account — представление пользователя в леджере.
type Account struct {
	ID                  int64     `json:"id"`
	TgID                int64     `json:"tg_id"`
	Username            *string   `json:"username"`
	Credits             int       `json:"credits"`
	AdviceCredits       int       `json:"advice_credits"`
	InviteCode          string    `json:"invite_code"`
	ReferredByAccountID *int64    `json:"referred_by_account_id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DisplayName возвращает @username или tg_id, если username не задан.
func (a *Account) DisplayName() string {
	if a.Username != nil && *a.Username != "" {
		return "@" + *a.Username
	}
	return formatTgID(a.TgID)
}

// TxType — направление транзакции.
type TxType string

const (
	TxGrant TxType = "grant"
	TxSpend TxType = "spend"
)

// Unit — какой баланс затрагивает транзакция.
type Unit string

const (
	UnitCredit Unit = "credit"
	UnitAdvice Unit = "advice"
)

// TxStatus — статус записи журнала.
type TxStatus string

const (
	StatusPending TxStatus = "pending"
	StatusSuccess TxStatus = "success"
	StatusFailed  TxStatus = "failed"
)

// Коды причин начислений и списаний (колонка reason).
const (
	ReasonWelcomeBonus     = "welcome_bonus"
	ReasonCreditSpend      = "credit_spend"
	ReasonAdviceSpend      = "advice_spend"
	ReasonPromoRedeem      = "promo_redeem"
	ReasonReferralBonus    = "referral_bonus"
	ReasonPurchase         = "purchase"
	ReasonAdminRecredit    = "admin_recredit"
	ReasonAdminGrant       = "admin_grant"
	ReasonGenerationRefund = "generation_refund"
)

// Meta — произвольные метаданные транзакции (JSONB): correlation id, id покупки и т.п.
type Meta map[string]any

// Transaction — неизменяемая запись журнала.
type Transaction struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Type      TxType    `json:"type"`
	Unit      Unit      `json:"unit"`
	Amount    int       `json:"amount"`
	Status    TxStatus  `json:"status"`
	Reason    string    `json:"reason"`
	Meta      Meta      `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
}

// Reconciliation — сверка баланса с журналом.
type Reconciliation struct {
	AccountID     int64
	Credits       int
	CreditGrants  int64
	CreditSpends  int64
	AdviceCredits int
	AdviceGrants  int64
	AdviceSpends  int64
}

// Consistent — баланс совпадает с журналом по обоим счётчикам.
func (r *Reconciliation) Consistent() bool {
	return int64(r.Credits) == r.CreditGrants-r.CreditSpends &&
		int64(r.AdviceCredits) == r.AdviceGrants-r.AdviceSpends
}
