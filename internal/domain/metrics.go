package domain

// LedgerMetrics is an operational snapshot of ledger activity, exposed
// on the metrics endpoint alongside the raw Prometheus series.
type LedgerMetrics struct {
	DepositsPosted    int64  `json:"deposits_posted"`
	WithdrawalsPosted int64  `json:"withdrawals_posted"`
	PostingsRejected  int64  `json:"postings_rejected"`
	TransfersPosted   int64  `json:"transfers_posted"`
	PartialTransfers  int64  `json:"partial_transfers"`
	Discrepancies     int64  `json:"reconciliation_discrepancies"`
	Period            string `json:"period"`
}
