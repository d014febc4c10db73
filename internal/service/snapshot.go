package service

import (
	"shop-pos/internal/models"
	"shop-pos/internal/pos/catalog"
	"shop-pos/internal/pos/session"
)

// toSnapshot builds the wire snapshot of an order. final_total is only
// exposed once the order is sold.
func toSnapshot(o *models.Order, items []models.OrderItem) session.Order {
	snap := session.Order{
		ID:              o.ID,
		ShopID:          o.ShopID,
		ClientName:      o.ClientName,
		Status:          session.Status(o.Status),
		DiscountPercent: o.DiscountPercent,
		Items:           make([]session.LineItem, 0, len(items)),
		CreatedAt:       o.CreatedAt,
	}
	for _, it := range items {
		snap.Items = append(snap.Items, session.LineItem{
			ProductID: it.ProductID,
			ItemCode:  it.ItemCode,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	if snap.Status == session.StatusSold {
		total := o.FinalTotal
		snap.FinalTotal = &total
	}
	return snap
}

func toSummary(o models.Order) session.Summary {
	return session.Summary{
		ID:              o.ID,
		ClientName:      o.ClientName,
		Status:          session.Status(o.Status),
		DiscountPercent: o.DiscountPercent,
		FinalTotal:      o.FinalTotal,
		CreatedAt:       o.CreatedAt,
	}
}

func toProduct(r models.InventoryRow) catalog.Product {
	return catalog.Product{
		ID:           r.ID,
		ItemCode:     r.ItemCode,
		CategoryName: r.CategoryName,
		VendorName:   r.VendorName,
		SellingPrice: r.SellingPrice,
		QtyDisplay:   r.QtyDisplay,
		QtyGodown:    r.QtyGodown,
		PhotoURL:     r.PhotoURL,
		Remark:       r.Remark,
	}
}
