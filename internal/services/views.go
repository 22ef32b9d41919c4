package services

import (
	"time"

	"github.com/kitchenops/checklists/internal/models"
)

type ConnectionView struct {
	ID          uint   `json:"id"`
	ItemType    string `json:"itemType"`
	ItemID      uint   `json:"itemId"`
	IsCompleted bool   `json:"isCompleted"`
}

type ItemView struct {
	ID           uint             `json:"id"`
	ParentID     *uint            `json:"parentId"`
	Content      string           `json:"content"`
	Instructions string           `json:"instructions,omitempty"`
	SortOrder    int              `json:"sortOrder"`
	IsRequired   bool             `json:"isRequired"`
	IsMain       bool             `json:"isMain"`
	IsCompleted  bool             `json:"isCompleted"`
	Notes        string           `json:"notes,omitempty"`
	Connections  []ConnectionView `json:"connections,omitempty"`
	Children     []ItemView       `json:"children,omitempty"`
}

// InstanceRow is the listing projection of an instance.
type InstanceRow struct {
	ID             uint       `json:"id"`
	TemplateID     uint       `json:"templateId"`
	TemplateName   string     `json:"templateName"`
	Workplace      string     `json:"workplace"`
	TimeSlot       string     `json:"timeSlot"`
	Date           string     `json:"date"`
	Code           string     `json:"code"`
	ItemCount      int        `json:"itemCount"`
	CompletedCount int        `json:"completedCount"`
	Percentage     int        `json:"percentage"`
	Status         string     `json:"status"`
	IsCompleted    bool       `json:"isCompleted"`
	CompletedAt    *time.Time `json:"completedAt"`
	IsSubmitted    bool       `json:"isSubmitted"`
	SubmittedAt    *time.Time `json:"submittedAt"`
	Counts         Counts     `json:"counts"`
}

type InstanceDetail struct {
	InstanceRow
	Items []ItemView `json:"items"`
}

func viewTree(t *Tree, progress map[uint]models.ItemProgress, connDone map[uint]bool) []ItemView {
	var build func(ns []*Node) []ItemView
	build = func(ns []*Node) []ItemView {
		out := make([]ItemView, 0, len(ns))
		for _, n := range ns {
			v := ItemView{
				ID:           n.Item.ID,
				ParentID:     n.Item.ParentID,
				Content:      n.Item.Content,
				Instructions: n.Item.Instructions,
				SortOrder:    n.Item.SortOrder,
				IsRequired:   n.Item.IsRequired,
				IsMain:       n.IsMain(),
			}
			if p, ok := progress[n.Item.ID]; ok {
				v.IsCompleted = p.IsCompleted
				v.Notes = p.Notes
			}
			for _, c := range n.Connections {
				v.Connections = append(v.Connections, ConnectionView{
					ID:          c.ID,
					ItemType:    c.ItemType,
					ItemID:      c.ItemID,
					IsCompleted: connDone[c.ID],
				})
			}
			if len(n.Children) > 0 {
				v.Children = build(n.Children)
			}
			out = append(out, v)
		}
		return out
	}
	return build(t.Roots)
}
