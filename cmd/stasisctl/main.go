// Command stasisctl is the command-line client for stasisd, sending a
// single line over the daemon's UNIX socket and printing its reply.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func main() {
	socketPath := flag.String("socket", "", "Path to the stasisd IPC socket (defaults to $XDG_RUNTIME_DIR/stasis.sock)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [--socket path] <command> [args...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  reload                  reread the configuration from disk\n")
		fmt.Fprintf(os.Stderr, "  pause [duration]        pause the timeline, indefinitely or for a duration (e.g. 30s, 5m, 1h 30m)\n")
		fmt.Fprintf(os.Stderr, "  resume                  clear any pause\n")
		fmt.Fprintf(os.Stderr, "  trigger all|<name>      fire one or every staged action immediately\n")
		fmt.Fprintf(os.Stderr, "  list_actions            list the default block's actions\n")
		fmt.Fprintf(os.Stderr, "  toggle_inhibit          toggle a manual inhibitor\n")
		fmt.Fprintf(os.Stderr, "  info [--json]           print current daemon status\n")
		fmt.Fprintf(os.Stderr, "  stop                    ask the daemon to exit\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	path := *socketPath
	if path == "" {
		path = defaultSocketPath()
	}

	reply, err := send(path, strings.Join(flag.Args(), " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "stasisctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "stasis.sock")
	}
	return "/tmp/stasis.sock"
}

func send(path, line string) (string, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", path, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, line); err != nil {
		return "", fmt.Errorf("sending command: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && reply == "" {
		return "", fmt.Errorf("reading reply: %w", err)
	}
	return strings.TrimRight(reply, "\n"), nil
}
