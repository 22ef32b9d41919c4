package services

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/models"
)

// Node is one active checklist item with its active children.
type Node struct {
	Item     models.ChecklistItem
	Children []*Node

	// Connections holds only connections whose external record belongs to
	// the tenant. HasConnections reflects the stored rows, checked or not.
	Connections    []models.ItemConnection
	HasConnections bool
}

// IsMain reports whether the node is a leaf, unconnected item. Children and
// connections each exclude an item on their own.
func (n *Node) IsMain() bool {
	return len(n.Children) == 0 && !n.HasConnections
}

// Tree is a template's active item tree.
type Tree struct {
	Roots []*Node
	nodes map[uint]*Node
	conns map[uint]*Node // connection id -> owning node
}

// BuildTree assembles the active tree from a flat item list (connections
// preloaded). Inactive items are dropped together with their subtree, as are
// items whose parent is not in the list. valid filters connections; nil
// keeps all of them.
func BuildTree(items []models.ChecklistItem, valid func(models.ItemConnection) bool) *Tree {
	byID := make(map[uint]models.ChecklistItem, len(items))
	children := make(map[uint][]models.ChecklistItem)
	var roots []models.ChecklistItem
	for _, it := range items {
		if !it.IsActive {
			continue
		}
		byID[it.ID] = it
	}
	for _, it := range byID {
		if it.ParentID == nil {
			roots = append(roots, it)
			continue
		}
		if _, ok := byID[*it.ParentID]; ok {
			children[*it.ParentID] = append(children[*it.ParentID], it)
		}
	}

	t := &Tree{nodes: make(map[uint]*Node, len(byID)), conns: make(map[uint]*Node)}
	var build func(it models.ChecklistItem) *Node
	build = func(it models.ChecklistItem) *Node {
		n := &Node{Item: it, HasConnections: len(it.Connections) > 0}
		for _, c := range sortedConnections(it.Connections) {
			if valid == nil || valid(c) {
				n.Connections = append(n.Connections, c)
				t.conns[c.ID] = n
			}
		}
		n.Item.Connections = nil
		t.nodes[it.ID] = n
		for _, ch := range sortedItems(children[it.ID]) {
			n.Children = append(n.Children, build(ch))
		}
		return n
	}
	for _, r := range sortedItems(roots) {
		t.Roots = append(t.Roots, build(r))
	}
	return t
}

// Walk visits nodes root-first, depth-first in sibling order.
func (t *Tree) Walk(fn func(n *Node)) {
	var walk func(ns []*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			fn(n)
			walk(n.Children)
		}
	}
	walk(t.Roots)
}

func (t *Tree) Node(id uint) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// ConnectionOwner returns the node holding a tenant-checked connection.
func (t *Tree) ConnectionOwner(connID uint) (*Node, bool) {
	n, ok := t.conns[connID]
	return n, ok
}

// Size is the number of active items in the tree.
func (t *Tree) Size() int { return len(t.nodes) }

// Units is the set of countable progress units of a tree.
type Units struct {
	Main        map[uint]bool // checklist item ids
	Connections map[uint]bool // connection ids
}

func (t *Tree) Units() Units {
	u := Units{Main: map[uint]bool{}, Connections: map[uint]bool{}}
	t.Walk(func(n *Node) {
		if n.IsMain() {
			u.Main[n.Item.ID] = true
		}
		for _, c := range n.Connections {
			u.Connections[c.ID] = true
		}
	})
	return u
}

func sortedItems(items []models.ChecklistItem) []models.ChecklistItem {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func sortedConnections(cs []models.ItemConnection) []models.ItemConnection {
	out := append([]models.ItemConnection(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// loadTrees loads the active trees of the given templates, checking every
// connection against the tenant's external records.
func loadTrees(ctx context.Context, tx *gorm.DB, tenantID string, templateIDs []uint) (map[uint]*Tree, error) {
	out := make(map[uint]*Tree, len(templateIDs))
	if len(templateIDs) == 0 {
		return out, nil
	}
	var items []models.ChecklistItem
	if err := tx.WithContext(ctx).
		Preload("Connections", func(q *gorm.DB) *gorm.DB {
			return q.Where("tenant_id = ?", tenantID).Order("sort_order asc, id asc")
		}).
		Where("tenant_id = ? AND template_id IN ? AND is_active = ?", tenantID, templateIDs, true).
		Order("sort_order asc, id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}

	var conns []models.ItemConnection
	byTemplate := make(map[uint][]models.ChecklistItem)
	for _, it := range items {
		byTemplate[it.TemplateID] = append(byTemplate[it.TemplateID], it)
		conns = append(conns, it.Connections...)
	}
	valid, err := validConnectionIDs(ctx, tx, tenantID, conns)
	if err != nil {
		return nil, err
	}
	for _, id := range templateIDs {
		out[id] = BuildTree(byTemplate[id], func(c models.ItemConnection) bool { return valid[c.ID] })
	}
	return out, nil
}

// validConnectionIDs returns the ids of connections whose referenced record
// exists within tenantID. Connections to another tenant's records are
// silently dropped.
func validConnectionIDs(ctx context.Context, tx *gorm.DB, tenantID string, conns []models.ItemConnection) (map[uint]bool, error) {
	out := make(map[uint]bool, len(conns))
	if len(conns) == 0 {
		return out, nil
	}
	ids := make([]uint, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ID)
	}
	var found []uint
	if err := tx.WithContext(ctx).Table("item_connections c").
		Joins("LEFT JOIN inventory_items inv ON c.item_type = ? AND inv.id = c.item_id AND inv.tenant_id = ?", models.ItemTypeInventory, tenantID).
		Joins("LEFT JOIN precautions pre ON c.item_type = ? AND pre.id = c.item_id AND pre.tenant_id = ?", models.ItemTypePrecaution, tenantID).
		Joins("LEFT JOIN manuals man ON c.item_type = ? AND man.id = c.item_id AND man.tenant_id = ?", models.ItemTypeManual, tenantID).
		Where("c.tenant_id = ? AND c.id IN ?", tenantID, ids).
		Where("(inv.id IS NOT NULL OR pre.id IS NOT NULL OR man.id IS NOT NULL)").
		Pluck("c.id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}
