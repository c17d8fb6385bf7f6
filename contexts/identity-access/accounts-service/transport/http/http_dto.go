package httptransport

type RegisterRequest struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name,omitempty"`
}

type AccountResponse struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	CreatedAt   string `json:"created_at"`
}

type GrantRoleRequest struct {
	Role string `json:"role"`
}

type ListAccountsResponse struct {
	Items []AccountResponse `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
