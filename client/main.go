package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
)

// Minimal terminal client: every line typed goes to the server, every line
// the server sends is printed. Authenticate first, e.g.:
//
//	REGISTER alice secret
//	INVITE bob
func main() {
	addr := flag.String("addr", "localhost:5555", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	log.Printf("Connected to %s", *addr)

	done := make(chan struct{})

	// Print everything the server sends.
	go func() {
		defer close(done)
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				log.Printf("Connection closed: %v", err)
				return
			}
			fmt.Print(line)
		}
	}()

	// Forward stdin to the server.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if _, err := fmt.Fprintf(conn, "%s\n", scanner.Text()); err != nil {
				log.Printf("Write error: %v", err)
				return
			}
		}
		conn.Close()
	}()

	<-done
}
