package documents

import "whitepaper-console/internal/upstream"

// StatusResponse is the outward-facing shape of one ingestion status check.
type StatusResponse struct {
	DocumentID   string `json:"documentId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ListItem is one entry of the document listing.
type ListItem struct {
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
}

func toStatusResponse(st upstream.DocumentStatus) StatusResponse {
	return StatusResponse{
		DocumentID:   st.DocumentID,
		Status:       st.Status,
		ErrorMessage: st.ErrorMessage,
	}
}

func toListItems(docs []upstream.DocumentSummary) []ListItem {
	items := make([]ListItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, ListItem{
			DocumentID: doc.DocumentID,
			FileName:   doc.FileName,
			Status:     doc.Status,
			CreatedAt:  doc.CreatedAt,
		})
	}
	return items
}
