package rpc

import (
	"context"

	v1 "swapi/shared/contracts/rpc/v1"
)

// builtins are always registered and always public.
func builtins(r *Registry) []Method {
	return []Method{
		{
			Name: "getMethods",
			Handler: func(ctx context.Context, _ *Call, args Args) (any, error) {
				if err := args.NoArgs(); err != nil {
					return nil, err
				}
				return r.Names(), nil
			},
		},
		{
			Name:         "getDetails",
			WantsContext: true,
			Handler: func(ctx context.Context, call *Call, args Args) (any, error) {
				if err := args.NoArgs(); err != nil {
					return nil, err
				}
				d := v1.Details{Capabilities: call.Capabilities.Sorted()}
				if !call.Anonymous() {
					u := call.User
					d.User = &u
				}
				return d, nil
			},
		},
		{
			Name:         "hasCapability",
			WantsContext: true,
			Handler: func(ctx context.Context, call *Call, args Args) (any, error) {
				var capability string
				if err := args.Bind([]string{"capability"}, &capability); err != nil {
					return nil, err
				}
				return call.HasCapability(capability), nil
			},
		},
	}
}
