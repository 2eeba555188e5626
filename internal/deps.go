package internal

import (
	"bitwise74/account-api/internal/account"
	"bitwise74/account-api/internal/dashboard"
	"bitwise74/account-api/internal/recovery"
	"bitwise74/account-api/internal/service"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/security"
)

type Deps struct {
	Store     store.Store
	Argon     *security.ArgonHash
	Tokens    *security.TokenIssuer
	Accounts  *account.Manager
	Recovery  *recovery.Manager
	Dashboard *dashboard.Manager
	Mail      *service.MailQueue
}
