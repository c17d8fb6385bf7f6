package httptransport

type DepositRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

type AccountResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	CreatedAt string `json:"created_at"`
}

type EntryDTO struct {
	EntryID   string `json:"entry_id"`
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

type DepositResponse struct {
	Account AccountResponse `json:"account"`
	Entry   EntryDTO        `json:"entry"`
}

type StatementResponse struct {
	Items []EntryDTO `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
