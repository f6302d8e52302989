package admin

import (
	"errors"
	"strconv"
	"strings"

	"serotonyl.ru/tarot-bot/internal/features/purchases"
)

var errUsage = errors.New("неверные аргументы")

// GrantRequest — /grant <tg_id> <n>
type GrantRequest struct {
	TgID   int64
	Amount int
}

// PromoRequest — /newpromo CODE AWARD [MAX_USES] [DAYS]
type PromoRequest struct {
	Code    string
	Award   int
	MaxUses *int
	Days    int
}

func parseGrant(args string) (GrantRequest, error) {
	f := strings.Fields(args)
	if len(f) != 2 {
		return GrantRequest{}, errUsage
	}
	tgID, err := strconv.ParseInt(f[0], 10, 64)
	if err != nil {
		return GrantRequest{}, errUsage
	}
	n, err := strconv.Atoi(f[1])
	if err != nil || n <= 0 {
		return GrantRequest{}, errUsage
	}
	return GrantRequest{TgID: tgID, Amount: n}, nil
}

func parsePromo(args string) (PromoRequest, error) {
	f := strings.Fields(args)
	if len(f) < 2 || len(f) > 4 {
		return PromoRequest{}, errUsage
	}
	award, err := strconv.Atoi(f[1])
	if err != nil || award < 0 {
		return PromoRequest{}, errUsage
	}
	req := PromoRequest{Code: f[0], Award: award}

	if len(f) >= 3 {
		// 0 — без лимита активаций
		maxUses, err := strconv.Atoi(f[2])
		if err != nil || maxUses < 0 {
			return PromoRequest{}, errUsage
		}
		if maxUses > 0 {
			req.MaxUses = &maxUses
		}
	}
	if len(f) == 4 {
		days, err := strconv.Atoi(f[3])
		if err != nil || days < 0 {
			return PromoRequest{}, errUsage
		}
		req.Days = days
	}
	return req, nil
}

// parseLimit — необязательный N для /purchases и /promos.
func parseLimit(args string) (int, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return purchases.DefaultListLimit, nil
	}
	n, err := strconv.Atoi(args)
	if err != nil || n <= 0 {
		return 0, errUsage
	}
	return purchases.ClampLimit(n), nil
}

func parseTgID(args string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return 0, errUsage
	}
	return id, nil
}
