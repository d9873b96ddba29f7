package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pgwallah/pgwallah-backend/pkg/enums"
	pkgerrors "github.com/pgwallah/pgwallah-backend/pkg/errors"
)

// Registry resolves adapters by gateway name.
type Registry struct {
	gateways    map[enums.GatewayName]Gateway
	defaultName enums.GatewayName
}

func NewRegistry(defaultName string, gateways ...Gateway) (*Registry, error) {
	r := &Registry{gateways: make(map[enums.GatewayName]Gateway, len(gateways))}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		if _, exists := r.gateways[gw.Name()]; exists {
			return nil, fmt.Errorf("gateway %s registered twice", gw.Name())
		}
		r.gateways[gw.Name()] = gw
	}
	if len(r.gateways) == 0 {
		return nil, fmt.Errorf("at least one gateway is required")
	}
	name, err := enums.ParseGatewayName(defaultName)
	if err != nil {
		return nil, err
	}
	if _, ok := r.gateways[name]; !ok {
		return nil, fmt.Errorf("default gateway %s is not configured", name)
	}
	r.defaultName = name
	return r, nil
}

// Get returns the adapter for name; an empty name selects the default gateway.
func (r *Registry) Get(name string) (Gateway, error) {
	if strings.TrimSpace(name) == "" {
		return r.gateways[r.defaultName], nil
	}
	parsed, err := enums.ParseGatewayName(name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown gateway")
	}
	gw, ok := r.gateways[parsed]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("gateway %s is not configured", parsed))
	}
	return gw, nil
}

func (r *Registry) Default() Gateway {
	return r.gateways[r.defaultName]
}

// Names lists the configured gateways in a stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name.String())
	}
	sort.Strings(names)
	return names
}
