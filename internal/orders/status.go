package orders

// Status bentuknya teks bebas; label di bawah dipakai sebagai konvensi
// di seluruh service.
const (
	StatusReceived  = "RECEIVED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)
