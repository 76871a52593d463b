package coordinator

import (
	"context"

	"github.com/pipestream/broker/api"
	"github.com/pipestream/broker/events"
)

// Unregister implements Coordinator. It does not consult or delete metadata
// rows — source behavior, preserved per §4.1.
func (c *coordinator) Unregister(ctx context.Context, req api.UnregisterRequest) (*api.UnregisterResponse, error) {
	name, host, port, kind, ok := c.splitServiceID(ctx, req.ServiceID)
	if !ok {
		return &api.UnregisterResponse{Success: false, Message: "service not found", Timestamp: now()}, nil
	}

	found, err := c.store.Deregister(ctx, req.ServiceID)
	if err != nil {
		return &api.UnregisterResponse{Success: false, Message: err.Error(), Timestamp: now()}, nil
	}
	if !found {
		return &api.UnregisterResponse{Success: false, Message: "service not found", Timestamp: now()}, nil
	}

	if c.publisher != nil {
		payload := events.UnregisteredPayload{ServiceID: req.ServiceID, Name: name, Timestamp: now()}
		if kind == api.RegistrantKindModule {
			c.publisher.PublishModuleUnregistered(ctx, payload)
		} else {
			c.publisher.PublishServiceUnregistered(ctx, payload)
		}
	}

	_ = host
	_ = port
	return &api.UnregisterResponse{Success: true, Message: "unregistered", Timestamp: now()}, nil
}

// splitServiceID recovers the name/kind of a registered service_id by
// scanning the live catalog rather than parsing the id string, avoiding the
// source's last-two-dashes heuristic bug (§9) the same way discoveryquery
// does for GetServiceByID/GetModuleByID.
func (c *coordinator) splitServiceID(ctx context.Context, serviceID string) (name, host string, port int, kind api.RegistrantKind, ok bool) {
	names, err := c.store.ListCatalog(ctx)
	if err != nil {
		return "", "", 0, api.RegistrantKindUnspecified, false
	}
	for _, svc := range names {
		instances, err := c.store.ListHealthyInstances(ctx, svc.Name)
		if err != nil {
			continue
		}
		for _, inst := range instances {
			if inst.Record.ID != serviceID {
				continue
			}
			k := api.RegistrantKindService
			for _, t := range inst.Record.Tags {
				if t == "module" {
					k = api.RegistrantKindModule
					break
				}
			}
			return inst.Record.Name, inst.Record.Address, inst.Record.Port, k, true
		}
	}
	return "", "", 0, api.RegistrantKindUnspecified, false
}
