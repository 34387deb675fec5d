package api

import (
	"strings"

	"github.com/example/ec-order-lifecycle/internal/domain/order"
)

// statusAliases maps the labels clients send to canonical statuses
var statusAliases = map[string]order.Status{
	"en_cours":     order.StatusEnCours,
	"en cours":     order.StatusEnCours,
	"pending":      order.StatusEnCours,
	"processing":   order.StatusEnCours,
	"livraison":    order.StatusLivraison,
	"en_livraison": order.StatusLivraison,
	"en livraison": order.StatusLivraison,
	"shipped":      order.StatusLivraison,
	"shipping":     order.StatusLivraison,
	"expédiée":     order.StatusLivraison,
	"expediee":     order.StatusLivraison,
	"livre":        order.StatusLivre,
	"livré":        order.StatusLivre,
	"livrée":       order.StatusLivre,
	"livree":       order.StatusLivre,
	"delivered":    order.StatusLivre,
	"annule":       order.StatusAnnule,
	"annulé":       order.StatusAnnule,
	"annulée":      order.StatusAnnule,
	"annulee":      order.StatusAnnule,
	"cancelled":    order.StatusAnnule,
	"canceled":     order.StatusAnnule,
}

// normalizeStatus returns the canonical status for raw. Unknown input is
// passed through unchanged so the order service rejects it.
func normalizeStatus(raw string) order.Status {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return order.Status(raw)
}
