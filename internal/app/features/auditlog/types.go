// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/civichub/internal/app/store/audit"
)

// eventView is one audit event as returned to admins.
type eventView struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"eventType"`
	GroupSlug     string            `json:"groupSlug,omitempty"`
	UserID        string            `json:"userId,omitempty"`
	ActorID       string            `json:"actorId,omitempty"`
	IP            string            `json:"ip"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failureReason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

func viewOf(e audit.Event) eventView {
	v := eventView{
		ID:            e.ID.Hex(),
		Timestamp:     e.Timestamp,
		Category:      e.Category,
		EventType:     e.EventType,
		GroupSlug:     e.GroupSlug,
		IP:            e.IP,
		Success:       e.Success,
		FailureReason: e.FailureReason,
		Details:       e.Details,
	}
	if e.UserID != nil {
		v.UserID = e.UserID.Hex()
	}
	if e.ActorID != nil {
		v.ActorID = e.ActorID.Hex()
	}
	return v
}

type listResponse struct {
	Items      []eventView `json:"items"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
	Total      int64       `json:"total"`
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventSignup,
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
		audit.EventVoterVerified,
		audit.EventVoterNotFound,
	}

	adminEvents := []string{
		audit.EventOrgRegistered,
		audit.EventOrgApproved,
		audit.EventOrgRejected,
		audit.EventAdminPromoted,
	}

	activityEvents := []string{
		audit.EventCampaignCreated,
		audit.EventCampaignUpdated,
		audit.EventCampaignDeleted,
		audit.EventCampaignForked,
		audit.EventNicknameChanged,
		audit.EventProfileUpdated,
		audit.EventPictureUploaded,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case audit.CategoryActivity:
		return activityEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents)+len(activityEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		all = append(all, activityEvents...)
		return all
	default:
		return nil
	}
}
