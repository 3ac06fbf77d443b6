package proxy

import "github.com/gwbridge/gwbridge/pkg/wire"

func (h *Handle) encodeCreate() []byte {
	return wire.Encode(&wire.CreateFrame{
		GatewayMessageVersion: gatewayMessageVersion,
		URIType:               uriTypeOpaque,
		URI:                   h.messageURL,
		Args:                  h.moduleArgs,
	})
}

func encodeStart() []byte {
	return wire.Encode(&wire.StartFrame{})
}

func encodeDestroy() []byte {
	return wire.Encode(&wire.DestroyFrame{})
}
