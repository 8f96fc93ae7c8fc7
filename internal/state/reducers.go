package state

import (
	"github.com/mmeshcher/storefront/internal/model"
)

func reduceSession(s SessionState, e Event) SessionState {
	switch e.Op {
	case OpRegister:
		var apply bool
		s.Register, apply = s.Register.apply(e)
		if resp, ok := e.Payload.(model.AuthResponse); apply && ok {
			u := resp.User
			s.User = &u
			if resp.Token != "" {
				s.Token = resp.Token
			}
		}
	case OpLogin:
		var apply bool
		s.Login, apply = s.Login.apply(e)
		if resp, ok := e.Payload.(model.AuthResponse); apply && ok {
			u := resp.User
			s.User = &u
			s.Token = resp.Token
		}
	case OpProfile:
		var apply bool
		s.Profile, apply = s.Profile.apply(e)
		if u, ok := e.Payload.(model.User); apply && ok {
			s.User = &u
		}
	case OpListUsers:
		s.Users, _ = reduceRequest(s.Users, e)
	case OpRestore:
		if sess, ok := e.Payload.(model.Session); ok {
			s.User = sess.User
			s.Token = sess.Token
		}
	case OpLogout:
		// нулевые номера циклов делают устаревшими все запросы в полёте
		return SessionState{}
	}
	return s
}

func reduceCatalog(c CatalogState, e Event) CatalogState {
	switch e.Op {
	case OpListProducts:
		c.List, _ = reduceRequest(c.List, e)
	case OpCreateProduct:
		var applied bool
		c.Create, applied = reduceRequest(c.Create, e)
		if applied && c.Create.Data != nil {
			c.List.Data = upsertProduct(c.List.Data, *c.Create.Data)
		}
	case OpUpdateProduct:
		var applied bool
		c.Update, applied = reduceRequest(c.Update, e)
		if applied && c.Update.Data != nil {
			c.List.Data = upsertProduct(c.List.Data, *c.Update.Data)
		}
	}
	return c
}

// upsertProduct заменяет товар с тем же ID или добавляет его в конец.
// Незагруженный список остаётся nil.
func upsertProduct(list []model.Product, p model.Product) []model.Product {
	if list == nil {
		return nil
	}

	out := make([]model.Product, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if p.ID != "" && existing.ID == p.ID {
			out = append(out, p)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, p)
	}
	return out
}

func reduceCart(c CartState, e Event) CartState {
	var apply bool

	switch e.Op {
	case OpFetchCart:
		c.Fetch, apply = c.Fetch.apply(e)
		if items, ok := e.Payload.([]model.CartItem); apply && ok {
			c.Items = positiveItems(items)
		}
	case OpAddCartItem:
		c.Add, apply = c.Add.apply(e)
		if item, ok := e.Payload.(model.CartItem); apply && ok && item.Quantity >= 1 {
			c.Items = upsertCartItem(c.Items, item)
		}
	case OpUpdateCartItem:
		c.Update, apply = c.Update.apply(e)
		if line, ok := e.Payload.(model.CartLine); apply && ok {
			c.Items = setQuantity(c.Items, line)
		}
	case OpDeleteCartItem:
		c.Delete, apply = c.Delete.apply(e)
		if id, ok := e.Payload.(model.ID); apply && ok {
			c.Items = removeCartItem(c.Items, id)
		}
	case OpClearCart:
		c.Clear, apply = c.Clear.apply(e)
		if apply {
			c.Items = []model.CartItem{}
		}
	case OpLogout:
		return CartState{}
	}
	return c
}

func positiveItems(items []model.CartItem) []model.CartItem {
	out := make([]model.CartItem, 0, len(items))
	for _, it := range items {
		if it.Quantity >= 1 {
			out = append(out, it)
		}
	}
	return out
}

func upsertCartItem(items []model.CartItem, item model.CartItem) []model.CartItem {
	out := make([]model.CartItem, 0, len(items)+1)
	replaced := false
	for _, it := range items {
		if it.ProductID == item.ProductID {
			out = append(out, item)
			replaced = true
			continue
		}
		out = append(out, it)
	}
	if !replaced {
		out = append(out, item)
	}
	return out
}

// setQuantity меняет количество позиции; количество меньше 1 удаляет позицию.
func setQuantity(items []model.CartItem, line model.CartLine) []model.CartItem {
	if line.Quantity < 1 {
		return removeCartItem(items, line.ProductID)
	}

	out := make([]model.CartItem, 0, len(items))
	for _, it := range items {
		if it.ProductID == line.ProductID {
			it.Quantity = line.Quantity
		}
		out = append(out, it)
	}
	return out
}

func removeCartItem(items []model.CartItem, id model.ID) []model.CartItem {
	if items == nil {
		return nil
	}

	out := make([]model.CartItem, 0, len(items))
	for _, it := range items {
		if it.ProductID != id {
			out = append(out, it)
		}
	}
	return out
}

func reduceOrders(o OrderState, e Event) OrderState {
	switch e.Op {
	case OpListOrders:
		var apply bool
		o.List, apply = o.List.apply(e)
		if orders, ok := e.Payload.([]model.Order); apply && ok {
			o.Orders = orders
		}
	case OpCreateOrder:
		if e.Phase == PhasePending {
			o.Warning = ""
		}
		var applied bool
		o.Create, applied = reduceRequest(o.Create, e)
		if applied && o.Create.Data != nil && o.Orders != nil {
			orders := make([]model.Order, 0, len(o.Orders)+1)
			orders = append(orders, o.Orders...)
			o.Orders = append(orders, *o.Create.Data)
		}
	case OpOrderWarning:
		if msg, ok := e.Payload.(string); ok {
			o.Warning = msg
		}
	case OpLogout:
		return OrderState{}
	}
	return o
}
