package guardian

import (
	"context"
	"encoding/json"

	"github.com/ethdenver2026/gateway/bpath"
	"github.com/ethdenver2026/gateway/bubbleerr"
	"github.com/ethdenver2026/gateway/contentid"
	"github.com/ethdenver2026/gateway/dataserver"
	"github.com/ethdenver2026/gateway/rpc"
)

// dispatch invokes the DataServer operation matching method and shapes its
// result into whatever each method's caller expects.
func (g *Guardian) dispatch(ctx context.Context, method rpc.Method, p rpc.Params, path *bpath.Path, resolved *bpath.Resolved) (interface{}, error) {
	switch method {
	case rpc.MethodCreate:
		if err := g.data.Create(ctx, p.Contract, writeOptionsFromParams(p)); err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return g.contentIDFor(p, bpath.Root())

	case rpc.MethodWrite:
		data := ""
		if p.Data != nil {
			data = *p.Data
		}
		if err := g.data.Write(ctx, p.Contract, path.String(), data); err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return g.contentIDFor(p, path)

	case rpc.MethodAppend:
		data := ""
		if p.Data != nil {
			data = *p.Data
		}
		if err := g.data.Append(ctx, p.Contract, path.String(), data); err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return g.contentIDFor(p, path)

	case rpc.MethodRead:
		readOpts := parseReadOptions(p.Options)
		content, err := g.data.Read(ctx, p.Contract, path.String(), readOpts)
		if err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return content, nil

	case rpc.MethodDelete:
		if err := g.data.Delete(ctx, p.Contract, path.String(), writeOptionsFromParams(p)); err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return nil, nil

	case rpc.MethodMkdir:
		if err := g.data.Mkdir(ctx, p.Contract, path.String(), writeOptionsFromParams(p)); err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return g.contentIDFor(p, path)

	case rpc.MethodList:
		listOpts, err := parseListOptions(p.Options)
		if err != nil {
			return nil, err
		}
		entries, err := g.data.List(ctx, p.Contract, path.String(), listOpts)
		if err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return entries, nil

	case rpc.MethodSubscribe:
		subOpts := parseSubscribeOptions(p.Options)
		result, err := g.data.Subscribe(ctx, p.Contract, path.String(), subOpts, g.notifyListener())
		if err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return result, nil

	case rpc.MethodUnsubscribe:
		id := ""
		if p.Options != nil {
			var opts struct {
				SubscriptionID string `json:"subscriptionId"`
			}
			_ = json.Unmarshal(p.Options, &opts)
			id = opts.SubscriptionID
		}
		if err := g.data.Unsubscribe(ctx, id); err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return nil, nil

	case rpc.MethodTerminate:
		if err := g.data.Terminate(ctx, p.Contract, writeOptionsFromParams(p)); err != nil {
			return nil, bubbleerr.AsError(err)
		}
		return nil, nil

	default:
		return nil, bubbleerr.New(bubbleerr.CodeMethodNotFound, "unknown method")
	}
}

// notifyListener is overridden by callers that want subscription
// notifications routed somewhere (e.g. a WebSocket transport); the default
// drops them, since the core Guardian is transport-agnostic.
func (g *Guardian) notifyListener() dataserver.Listener {
	if g.onNotify != nil {
		return g.onNotify
	}
	return func(dataserver.Notification) {}
}

func (g *Guardian) contentIDFor(p rpc.Params, path *bpath.Path) (string, error) {
	cid, err := contentid.New(p.ChainId, p.Contract, g.providerURL, path)
	if err != nil {
		return "", err
	}
	return cid.String()
}

func parseReadOptions(raw json.RawMessage) dataserver.ReadOptions {
	var opts struct {
		Silent bool `json:"silent"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &opts)
	}
	return dataserver.ReadOptions{Silent: opts.Silent}
}

func parseSubscribeOptions(raw json.RawMessage) dataserver.SubscribeOptions {
	var opts struct {
		List bool `json:"list"`
		Read bool `json:"read"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &opts)
	}
	return dataserver.SubscribeOptions{List: opts.List, Read: opts.Read}
}

func parseListOptions(raw json.RawMessage) (dataserver.ListOptions, error) {
	var wire struct {
		Long          bool   `json:"long"`
		Length        bool   `json:"length"`
		Created       bool   `json:"created"`
		Modified      bool   `json:"modified"`
		DirectoryOnly bool   `json:"directoryOnly"`
		Matches       string `json:"matches"`
		After         *int64 `json:"after"`
		Before        *int64 `json:"before"`
		CreatedAfter  *int64 `json:"createdAfter"`
		CreatedBefore *int64 `json:"createdBefore"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &wire); err != nil {
			return dataserver.ListOptions{}, bubbleerr.New(bubbleerr.CodeInvalidOption, "invalid list options")
		}
	}
	return dataserver.ListOptions{
		Long: wire.Long, Length: wire.Length, Created: wire.Created, Modified: wire.Modified,
		DirectoryOnly: wire.DirectoryOnly, Matches: wire.Matches,
		After: wire.After, Before: wire.Before, CreatedAfter: wire.CreatedAfter, CreatedBefore: wire.CreatedBefore,
	}, nil
}
