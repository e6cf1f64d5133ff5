// Command gorent is the CLI entry point: five subcommands over the
// metainfo/tracker/peer/download packages, laid out the way the
// teacher's main() dispatches on flag.Args()[0], but structured as
// kingpin subcommands (grounded on uber-kraken's tools/bin/trackerload
// main.go) instead of a hand-rolled switch.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/alecthomas/kingpin"
	"github.com/c2h5oh/datasize"

	"gorent/download"
	"gorent/internal/log"
	"gorent/metainfo"
	"gorent/peer"
	"gorent/tracker"
)

var (
	app = kingpin.New("gorent", "A minimal BitTorrent client")

	verbose = app.Flag("verbose", "Enable debug logging").Short('v').Bool()

	infoCmd     = app.Command("info", "Print a torrent file's metadata")
	infoFile    = infoCmd.Arg("torrent-file", "Path to the .torrent file").Required().String()

	peersCmd  = app.Command("peers", "Announce to the tracker and list peers")
	peersFile = peersCmd.Arg("torrent-file", "Path to the .torrent file").Required().String()

	handshakeCmd = app.Command("handshake", "Perform the wire handshake with one peer")
	handshakeFile = handshakeCmd.Arg("torrent-file", "Path to the .torrent file").Required().String()
	handshakeAddr = handshakeCmd.Arg("peer-addr", "Peer address, host:port").Required().String()

	downloadPieceCmd   = app.Command("download_piece", "Download and verify a single piece")
	downloadPieceFile  = downloadPieceCmd.Arg("torrent-file", "Path to the .torrent file").Required().String()
	downloadPieceIndex = downloadPieceCmd.Arg("piece-index", "Zero-based piece index").Required().Int()
	downloadPieceOut   = downloadPieceCmd.Flag("output", "Output file").Short('o').String()

	downloadCmd  = app.Command("download", "Download an entire single-file torrent")
	downloadFile = downloadCmd.Arg("torrent-file", "Path to the .torrent file").Required().String()
	downloadOut  = downloadCmd.Flag("output", "Output file (defaults to info.name)").Short('o').String()
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))
	log.SetVerbose(*verbose)

	var err error
	switch cmd {
	case infoCmd.FullCommand():
		err = runInfo(*infoFile)
	case peersCmd.FullCommand():
		err = runPeers(*peersFile)
	case handshakeCmd.FullCommand():
		err = runHandshake(*handshakeFile, *handshakeAddr)
	case downloadPieceCmd.FullCommand():
		err = runDownloadPiece(*downloadPieceFile, *downloadPieceIndex, *downloadPieceOut)
	case downloadCmd.FullCommand():
		err = runDownload(*downloadFile, *downloadOut)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "gorent:", err)
		os.Exit(1)
	}
}

func openTorrent(path string) (*metainfo.Torrent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return metainfo.Parse(f)
}

func runInfo(path string) error {
	t, err := openTorrent(path)
	if err != nil {
		return err
	}
	fmt.Printf("name:        %s\n", t.Info.Name)
	fmt.Printf("announce:    %s\n", t.Announce)
	fmt.Printf("length:      %s\n", datasize.ByteSize(t.TotalLength()))
	fmt.Printf("piece count: %d\n", t.PieceCount())
	fmt.Printf("piece size:  %s\n", datasize.ByteSize(t.Info.PieceLength))
	fmt.Printf("info hash:   %x\n", t.InfoHash)
	return nil
}

func announcePeers(t *metainfo.Torrent) ([]peer.Peer, [20]byte, error) {
	peerID := tracker.GeneratePeerID()
	resp, err := tracker.New().Announce(t, peerID, tracker.DefaultPort)
	if err != nil {
		return nil, peerID, err
	}
	return resp.Peers, peerID, nil
}

func runPeers(path string) error {
	t, err := openTorrent(path)
	if err != nil {
		return err
	}
	peers, _, err := announcePeers(t)
	if err != nil {
		return err
	}
	for _, p := range peers {
		fmt.Println(p.String())
	}
	return nil
}

func runHandshake(path, addr string) error {
	t, err := openTorrent(path)
	if err != nil {
		return err
	}
	p, err := parsePeerAddr(addr)
	if err != nil {
		return err
	}
	peerID := tracker.GeneratePeerID()
	sess, err := peer.Dial(p, peerID, t.InfoHash, nil)
	if err != nil {
		return err
	}
	defer sess.Close()
	fmt.Printf("peer id: %x\n", sess.PeerID)
	return nil
}

func runDownloadPiece(path string, index int, out string) error {
	t, err := openTorrent(path)
	if err != nil {
		return err
	}
	if index < 0 || index >= t.PieceCount() {
		return fmt.Errorf("piece index %d out of range [0,%d)", index, t.PieceCount())
	}
	peers, peerID, err := announcePeers(t)
	if err != nil {
		return err
	}
	a := download.NewAssembler(t, peers, peerID)
	defer a.Close()
	data, err := a.DownloadPiece(index)
	if err != nil {
		return err
	}
	if out == "" {
		out = fmt.Sprintf("/tmp/piece-%d", index)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote piece %d (%s) to %s\n", index, datasize.ByteSize(len(data)), out)
	printSummary(a.Stats)
	return nil
}

func runDownload(path, out string) error {
	t, err := openTorrent(path)
	if err != nil {
		return err
	}
	peers, peerID, err := announcePeers(t)
	if err != nil {
		return err
	}
	a := download.NewAssembler(t, peers, peerID)
	defer a.Close()
	data, err := a.Download()
	if err != nil {
		return err
	}
	if out == "" {
		out = t.Info.Name
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s) to %s\n", t.Info.Name, datasize.ByteSize(len(data)), out)
	printSummary(a.Stats)
	return nil
}

func printSummary(stats *download.Stats) {
	for name, v := range stats.Summary() {
		fmt.Printf("%s = %d\n", name, v)
	}
}

func parsePeerAddr(addr string) (peer.Peer, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return peer.Peer{}, err
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return peer.Peer{}, err
	}
	var ip net.IP
	for _, candidate := range ips {
		if v4 := candidate.To4(); v4 != nil {
			ip = v4
			break
		}
	}
	if ip == nil {
		return peer.Peer{}, fmt.Errorf("%s: no IPv4 address found (IPv6 peers are unsupported)", host)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return peer.Peer{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return peer.Peer{IP: ip, Port: uint16(port)}, nil
}
