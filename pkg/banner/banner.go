package banner

import "fmt"

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗ ██████╗ ██████╗ ██████╗ ███████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝██╔═══██╗██╔══██╗██╔════╝
██║     ███████║███████║   ██║   ██║     ██║   ██║██████╔╝█████╗
██║     ██╔══██║██╔══██║   ██║   ██║     ██║   ██║██╔══██╗██╔══╝
╚██████╗██║  ██║██║  ██║   ██║   ╚██████╗╚██████╔╝██║  ██║███████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝    ╚═════╝ ╚═════╝ ╚═╝  ╚═╝╚══════╝
`

// Info carries the startup facts worth showing an operator.
type Info struct {
	Addr      string
	User      string
	UserID    string
	Transport string
	Journal   string
	Version   string
}

// Print prints the startup banner and runtime info.
func Print(info Info) {
	fmt.Print(banner)
	fmt.Println("== Session ====================================================")
	fmt.Printf("User:      %s (%s)\n", info.User, info.UserID)
	fmt.Printf("Gateway:   http://%s\n", info.Addr)
	if info.Transport != "" {
		fmt.Printf("Transport: %s\n", info.Transport)
	} else {
		fmt.Println("Transport: offline (no url configured)")
	}
	if info.Journal != "" {
		fmt.Printf("Journal:   %s\n", info.Journal)
	} else {
		fmt.Println("Journal:   disabled (history is in-memory only)")
	}
	if info.Version != "" {
		fmt.Printf("Version:   %s\n", info.Version)
	}
	fmt.Println("\n== Views ======================================================")
	fmt.Println("GET  /v1/conversations?q=<filter> - conversation summaries")
	fmt.Println("GET  /v1/conversations/{id}/messages - ordered message log")
	fmt.Println("POST /v1/conversations/{id}/messages - send (returns temp_id)")
	fmt.Println("PUT  /v1/selection - select a conversation (marks it read)")
	fmt.Println("\n== Logs: ======================================================")
}
