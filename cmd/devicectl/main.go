// Command devicectl is a diagnostic CLI for the gateway's HTTP API: it
// lists known devices and sends actuator commands from a terminal.
package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"iotfabric/internal/cliconfig"
	"iotfabric/internal/model"
)

func main() {
	gatewayAddr := flag.String("gateway-addr", cliconfig.Getenv("GATEWAY_ADDR", "http://localhost:8383"), "gateway API base address")
	flag.Parse()

	fmt.Printf("devicectl - connected to %s\n", *gatewayAddr)
	fmt.Println("Commands: list | send <device_id> lightlamp <on|off|brightness N|color NAME> | send <device_id> sink <on|off> | help | quit")
	fmt.Println()

	client := &client{addr: *gatewayAddr, http: &http.Client{Timeout: 5 * time.Second}}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		handleLine(client, strings.TrimSpace(scanner.Text()))
		fmt.Print("> ")
	}
}

func handleLine(c *client, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "list":
		devices, err := c.listDevices()
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Printf("%d device(s):\n", len(devices))
		for _, d := range devices {
			fmt.Printf("  %-40s %-12s %-12s %s %v\n", d.ID, d.Category, d.Status, d.DeviceName, d.Addresses)
		}
	case "send":
		if len(fields) < 3 {
			fmt.Println("usage: send <device_id> <lightlamp|sink> <args...>")
			return
		}
		action, err := parseAction(fields[2], fields[3:])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		message, cmdErr := c.sendCommand(fields[1], action)
		if cmdErr != nil {
			fmt.Printf("device error: %s: %s\n", cmdErr.Code, cmdErr.Message)
			return
		}
		fmt.Println(message)
	case "help", "h":
		fmt.Println("list                                          - list known devices")
		fmt.Println("send <device_id> lightlamp on|off              - toggle a light lamp")
		fmt.Println("send <device_id> lightlamp brightness <0-100>  - set brightness")
		fmt.Println("send <device_id> lightlamp color <name>        - set color")
		fmt.Println("send <device_id> sink on|off                   - toggle a sink")
	case "quit", "exit":
		os.Exit(0)
	default:
		fmt.Printf("unknown command %q, try help\n", fields[0])
	}
}

func parseAction(category string, args []string) (model.ActuatorAction, error) {
	switch category {
	case "lightlamp":
		l := &model.LightLampAction{}
		if len(args) == 0 {
			return model.ActuatorAction{}, fmt.Errorf("lightlamp requires on|off|brightness|color")
		}
		switch args[0] {
		case "on", "off":
			l.HasTurnOn = true
			l.TurnOn = args[0] == "on"
		case "brightness":
			if len(args) < 2 {
				return model.ActuatorAction{}, fmt.Errorf("brightness requires a value")
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return model.ActuatorAction{}, fmt.Errorf("invalid brightness %q: %w", args[1], err)
			}
			l.HasBrightness = true
			l.Brightness = n
		case "color":
			if len(args) < 2 {
				return model.ActuatorAction{}, fmt.Errorf("color requires a value")
			}
			l.HasColor = true
			l.Color = args[1]
		default:
			return model.ActuatorAction{}, fmt.Errorf("unknown lightlamp action %q", args[0])
		}
		return model.ActuatorAction{Category: model.CategoryLightLamp, LightLamp: l}, nil
	case "sink":
		if len(args) == 0 || (args[0] != "on" && args[0] != "off") {
			return model.ActuatorAction{}, fmt.Errorf("sink requires on|off")
		}
		s := &model.SinkAction{HasTurnOn: true, TurnOn: args[0] == "on"}
		return model.ActuatorAction{Category: model.CategorySink, Sink: s}, nil
	default:
		return model.ActuatorAction{}, fmt.Errorf("unknown category %q", category)
	}
}

type client struct {
	addr string
	http *http.Client
}

func (c *client) listDevices() ([]model.DeviceEntry, error) {
	req := model.Request{Kind: model.ReqListDevices, ListFilter: &model.ListDevicesFilter{}}
	body, err := c.post("/v1/devices", model.EncodeRequest(req))
	if err != nil {
		return nil, err
	}
	resp, err := model.DecodeResponse(body)
	if err != nil {
		return nil, err
	}
	if resp.Kind == model.RespError {
		return nil, resp.Err
	}
	return resp.Devices, nil
}

func (c *client) sendCommand(deviceID string, action model.ActuatorAction) (string, *model.Error) {
	req := model.Request{Kind: model.ReqSendActuatorCommand, DeviceID: deviceID, Action: &action}
	body, err := c.post("/v1/commands", model.EncodeRequest(req))
	if err != nil {
		return "", model.NewError(model.ErrUnknown, err.Error())
	}
	resp, err := model.DecodeResponse(body)
	if err != nil {
		return "", model.NewError(model.ErrUnknown, err.Error())
	}
	if resp.Kind == model.RespError {
		return "", resp.Err
	}
	return resp.Message, nil
}

func (c *client) post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.addr+path, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %s: %s", resp.Status, string(out))
	}
	return out, nil
}
