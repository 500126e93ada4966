package state

import (
	"net/netip"
	"time"
)

var (
	DefaultConfigPath = "node.yaml"

	// probing
	DefaultProbePort   = 8080
	DefaultProbePath   = "/10MB.bin"
	DefaultPayloadSize = int64(10 * 1024 * 1024)
	ProbeTimeout       = time.Second * 10
	// ProbePacing is the pause between two probes of the same run, so one probe's traffic does not skew the next.
	ProbePacing    = time.Millisecond * 500
	MinProbePacing = time.Millisecond * 500
	PingAttempts   = 1

	// graph
	DefaultOrigin = NodeId("Origin")

	// transfer
	DefaultTransferPort = 8080
	// AltTransferPort is the port used by the alternate transfer deployment.
	AltTransferPort   = 55555
	ChunkSize         = 4096
	MaxHeaderSize     = 1024
	// HeaderSettle is how long a receiver waits for more size digits before the header counts as complete.
	HeaderSettle = time.Millisecond * 50
	// HeaderPause is how long a sender waits between the header and a body starting with a digit. It must exceed HeaderSettle.
	HeaderPause       = time.Millisecond * 250
	ConnectTimeout    = time.Second * 15
	TransferIOTimeout = time.Second * 30
	DefaultReceiveDir = "Archivos_Recibidos"
	RecentTransferTTL = time.Minute * 10

	// results
	DefaultMetricsPath = "resultados/resultados_ancho_banda.json"
	ResultsBufferSize  = 16

	// overlay address ranges handed out by the overlay VPN
	DefaultOverlayPrefixes = []netip.Prefix{
		netip.MustParsePrefix("25.0.0.0/8"),
		netip.MustParsePrefix("5.0.0.0/8"),
	}
)
