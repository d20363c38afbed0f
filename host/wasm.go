package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/hostfuncs"
	"github.com/reglet-dev/scriptnet/internal/abi"
	"github.com/reglet-dev/scriptnet/log"
)

// HostModule is the import module name plugins link against.
const HostModule = "scriptnet_host"

func (e *Executor) registerHostFunctions(ctx context.Context) error {
	builder := e.runtime.NewHostModuleBuilder(HostModule)

	for _, name := range e.registry.Names() {
		localName := name
		builder.NewFunctionBuilder().
			WithFunc(func(ctx context.Context, m api.Module, packed uint64) uint64 {
				payload, ok := readPacked(m, packed)
				if !ok {
					return 0
				}
				resp, err := e.registry.Invoke(hostfuncs.WithCaller(ctx, m.Name()), localName, payload)
				if err != nil {
					resp = hostfuncs.NewInternalError(err.Error()).ToJSON()
				}
				packedResp, err := writeGuest(ctx, m, resp)
				if err != nil {
					e.logger.Warn("failed to return host function result",
						zap.String("plugin", m.Name()),
						zap.String("function", localName),
						zap.Error(err))
					return 0
				}
				return packedResp
			}).
			Export(name)
	}

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, packed uint64) {
			payload, ok := readPacked(m, packed)
			if !ok {
				return
			}
			var msg log.LogMessageWire
			if err := json.Unmarshal(payload, &msg); err != nil {
				e.logger.Info("plugin log (raw)", zap.String("plugin", m.Name()), zap.ByteString("payload", payload))
				return
			}
			msg.Emit(e.logger, m.Name())
		}).
		Export("log_message")

	_, err := builder.Instantiate(ctx)
	return err
}

// readPacked reads the packed (ptr, len) region of guest memory.
func readPacked(m api.Module, packed uint64) ([]byte, bool) {
	ptr, length := abi.UnpackPtrLen(packed)
	return m.Memory().Read(ptr, length)
}

// writeGuest copies data into memory obtained from the guest's allocate
// export and returns it packed.
func writeGuest(ctx context.Context, m api.Module, data []byte) (uint64, error) {
	allocate := m.ExportedFunction("allocate")
	if allocate == nil {
		return 0, fmt.Errorf("guest does not export 'allocate'")
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate in guest: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocate returned no results")
	}
	ptr := uint32(results[0])
	if ptr == 0 && len(data) > 0 {
		return 0, fmt.Errorf("allocate returned a null pointer")
	}
	if !m.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("failed to write to guest memory")
	}
	return abi.PackPtrLen(ptr, uint32(len(data))), nil
}

func (p *PluginInstance) callRaw(ctx context.Context, name string, input []byte) (uint64, error) {
	f := p.module.ExportedFunction(name)
	if f == nil {
		return 0, fmt.Errorf("export %q not found", name)
	}

	var (
		results []uint64
		err     error
	)
	if len(input) == 0 {
		results, err = f.Call(ctx)
	} else {
		packed, werr := writeGuest(ctx, p.module, input)
		if werr != nil {
			return 0, werr
		}
		ptr, length := abi.UnpackPtrLen(packed)
		results, err = f.Call(ctx, uint64(ptr), uint64(length))
	}

	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}
