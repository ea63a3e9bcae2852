package graph

import (
	"time"

	"github.com/vietddude/mailsweep/internal/core/domain"
)

// Page is one page of listed messages plus the continuation link
// for the next page ("" when exhausted).
type Page struct {
	Messages []domain.CandidateMessage
	NextLink string
}

// Folder is a mail folder as reported by the service.
type Folder struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	TotalItemCount int    `json:"totalItemCount"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type messageResource struct {
	ID               string     `json:"id"`
	From             *recipient `json:"from"`
	ReceivedDateTime time.Time  `json:"receivedDateTime"`
	HasAttachments   bool       `json:"hasAttachments"`
}

type listResponse struct {
	Value    []messageResource `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

type folderListResponse struct {
	Value    []Folder `json:"value"`
	NextLink string   `json:"@odata.nextLink"`
}

type subRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

type batchRequest struct {
	Requests []subRequest `json:"requests"`
}

type subResponse struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

type batchResponse struct {
	Responses []subResponse `json:"responses"`
}

func (m messageResource) candidate() domain.CandidateMessage {
	c := domain.CandidateMessage{
		ID:             domain.MessageID(m.ID),
		ReceivedAt:     m.ReceivedDateTime,
		HasAttachments: m.HasAttachments,
	}
	if m.From != nil {
		c.Sender = m.From.EmailAddress.Address
	}
	return c
}
