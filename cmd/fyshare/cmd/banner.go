package cmd

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/fatih/color"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/fyshare/fyshare/web"
)

const banner = `
  _____      ____  _
 |  ___|   _/ ___|| |__   __ _ _ __ ___
 | |_ | | | \___ \| '_ \ / _` + "`" + ` | '__/ _ \
 |  _|| |_| |___) | | | | (_| | | |  __/
 |_|   \__, |____/|_| |_|\__,_|_|  \___|
       |___/
`

// credentialBanner is what the operator needs to hand out access.
type credentialBanner struct {
	Root        string
	URL         string
	Passcode    string
	MaxUsers    int
	IdleTimeout time.Duration
	Message     string
	QR          bool
}

func printBanner(w io.Writer) {
	color.New(color.FgCyan).Fprint(w, banner)
	color.New(color.FgHiBlack).Fprintf(w, "    version: %s\n\n", Version)
}

func printCredentials(w io.Writer, b credentialBanner) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow, color.Bold)
	gray := color.New(color.FgHiBlack)

	if b.Message != "" {
		gray.Fprintf(w, "    %s\n", b.Message)
	}
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Sharing:   %s\n", b.Root)
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "URL:       %s\n", b.URL)
	green.Fprint(w, "    ▶ ")
	fmt.Fprint(w, "Passcode:  ")
	yellow.Fprintln(w, b.Passcode)
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Max users: %d, stops after %s without sessions\n", b.MaxUsers, web.DurationLabel(b.IdleTimeout))

	if b.QR {
		q, err := qrcode.New(b.URL, qrcode.Medium)
		if err == nil {
			fmt.Fprintln(w)
			fmt.Fprint(w, q.ToSmallString(false))
		}
	}
	fmt.Fprintln(w)
}

// localIP returns the address of the interface that routes to the
// internet. Dialing UDP sends no packets.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "0.0.0.0"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsUnspecified() {
		return "0.0.0.0"
	}
	return addr.IP.String()
}
