package domain

import (
	"sort"
	"strings"
	"time"
)

// Message is a chat entry in a room. ID is unique within a room and stable
// across edits; edits mutate Content in place.
type Message struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	FileURL        string    `json:"fileUrl,omitempty"`
	MemberID       string    `json:"memberId"`
	Name           string    `json:"name"`
	TaskID         string    `json:"taskId,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Deleted        bool      `json:"deleted,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DirectRoomID derives the deterministic id of a two-party conversation:
// the participant member ids sorted and concatenated. Both participants
// compute the same id regardless of who initiates.
func DirectRoomID(memberA, memberB string) string {
	if memberB < memberA {
		memberA, memberB = memberB, memberA
	}
	return memberA + memberB
}

// PeerID recovers the other participant's member id from a direct room id.
func PeerID(roomID, selfID string) string {
	return strings.Replace(roomID, selfID, "", 1)
}

// SortMessagesAscending orders messages by non-decreasing creation time.
// The sort is stable so equal timestamps keep their arrival order.
func SortMessagesAscending(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
