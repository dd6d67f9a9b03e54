package models

// QueryRequest is the body of POST /api/v1/hackrx/run. Documents is an
// http(s) URL or a file name under the local documents directory.
type QueryRequest struct {
	Documents string   `json:"documents" binding:"required"`
	Questions []string `json:"questions" binding:"required"`
}

// QueryResponse carries one answer per question, in question order.
type QueryResponse struct {
	Answers []string `json:"answers"`
}
