package logging

import "strings"

// AuditEvent records an on-chain action submitted on behalf of the user.
type AuditEvent struct {
	Operation string // "approve", "stake", "claim", "claim_all", "disconnect"
	Account   string
	Target    string // contract address or stake index
	Result    string // "submitted", "confirmed", "failed"
	TxHashes  []string
	Details   string
}

// Audit logs a wallet-affecting operation at Info level with an "audit"
// attribute so the entries can be filtered out of regular application logs.
func Audit(event AuditEvent) {
	Logger().Info("audit",
		"audit", true,
		"operation", event.Operation,
		"account", event.Account,
		"target", event.Target,
		"result", event.Result,
		"tx_hashes", strings.Join(event.TxHashes, ","),
		"details", event.Details,
	)
}
