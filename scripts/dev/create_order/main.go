package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/helioswap/dca-engine/internal/asset"
	"github.com/helioswap/dca-engine/internal/types"
)

var serverURL string
var owner string

func main() {
	flag.StringVar(&serverURL, "server", "http://localhost:8080", "dca engine server url")
	flag.StringVar(&owner, "owner", "", "order owner address")
	flag.Parse()

	if owner == "" {
		panic("owner is required")
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Enter initial asset (e.g. native:uusd or token:0x...): ")
	initialStr := readLine(reader)
	initial, err := asset.ParseRef(initialStr)
	if err != nil {
		panic(err)
	}

	fmt.Print("Enter deposit amount: ")
	deposit, err := decimal.NewFromString(readLine(reader))
	if err != nil {
		panic(err)
	}

	fmt.Print("Enter target asset: ")
	target, err := asset.ParseRef(readLine(reader))
	if err != nil {
		panic(err)
	}

	fmt.Print("Enter amount per purchase: ")
	dcaAmount, err := decimal.NewFromString(readLine(reader))
	if err != nil {
		panic(err)
	}

	fmt.Print("Enter purchase interval in seconds: ")
	interval, err := strconv.ParseInt(readLine(reader), 10, 64)
	if err != nil {
		panic(err)
	}

	req := types.CreateOrderRequest{
		InitialAsset: types.AssetAmount{Info: initial, Amount: deposit},
		TargetAsset:  target,
		DCAAmount:    dcaAmount,
		Interval:     interval,
	}
	buf, err := json.Marshal(req)
	if err != nil {
		panic(err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, serverURL+"/orders", bytes.NewReader(buf))
	if err != nil {
		panic(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-caller", owner)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		panic(err)
	}
	fmt.Printf("Status: %s\n%s\n", resp.Status, body.String())
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
