package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/drivectl/internal/daemon"
	logs "github.com/danmuck/drivectl/internal/logging"
	"github.com/danmuck/drivectl/internal/serialport"
)

func main() {
	configPath := flag.String("config", "", "path to drivectl TOML config (defaults apply when empty)")
	listPorts := flag.Bool("list-ports", false, "print detected serial ports and exit")
	flag.Parse()

	logs.ConfigureRuntime()

	if *listPorts {
		if err := printPorts(); err != nil {
			fmt.Fprintf(os.Stderr, "drivectl: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg := daemon.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "drivectl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc := daemon.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "drivectl: %v\n", err)
		os.Exit(1)
	}
}

func printPorts() error {
	ports, err := serialport.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.USB {
			fmt.Printf("%s\tusb %s:%s %s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
			continue
		}
		fmt.Println(p.Name)
	}
	return nil
}
