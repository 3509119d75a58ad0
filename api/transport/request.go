package transport

// CreateProductRequest registers a new product on the ledger. HarvestDate
// travels as epoch seconds, matching the ledger representation.
type CreateProductRequest struct {
	Name        string `json:"name"`
	Quantity    int64  `json:"quantity"`
	HarvestDate int64  `json:"harvest_date"`
}

// AppendUpdateRequest appends a lifecycle event to an existing product.
type AppendUpdateRequest struct {
	Status  string `json:"status"`
	Payload string `json:"payload"`
}

// WalletConnectRequest opens a wallet session.
type WalletConnectRequest struct {
	Address   string `json:"address"`
	NetworkID int64  `json:"network_id"`
}

// SwitchNetworkRequest records an explicit network switch.
type SwitchNetworkRequest struct {
	NetworkID int64 `json:"network_id"`
}
