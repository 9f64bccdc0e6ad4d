package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aridsondez/AWS-SQS-MOCK/pkg/client"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func main() {
	baseURL := "http://localhost:8080"
	if v := os.Getenv("SQSMOCK_URL"); v != "" {
		baseURL = v
	}
	ctx := context.Background()
	c := client.NewClient(baseURL)

	if !checkServer(baseURL) {
		fmt.Printf("%sServer not running at %s. Start it with 'sqsmock serve'.%s\n", colorRed, baseURL, colorReset)
		os.Exit(1)
	}
	fmt.Printf("%s=== Queue service demo ===%s\n\n", colorBold+colorCyan, colorReset)

	steps := []struct {
		name string
		run  func(context.Context, *client.Client) error
	}{
		{"Send, receive, delete", basicFlow},
		{"Visibility timeout expiry", visibilityExpiry},
		{"Long polling", longPoll},
	}
	for i, s := range steps {
		fmt.Printf("%s[%d] %s%s\n", colorBold+colorYellow, i+1, s.name, colorReset)
		if err := s.run(ctx, c); err != nil {
			fmt.Printf("%s  failed: %v%s\n\n", colorRed, err, colorReset)
			os.Exit(1)
		}
		fmt.Println()
	}
	displayMetrics(baseURL)
}

func step(format string, args ...any) {
	fmt.Printf("  %s✓%s %s\n", colorGreen, colorReset, fmt.Sprintf(format, args...))
}

func basicFlow(ctx context.Context, c *client.Client) error {
	url, err := c.CreateQueue(ctx, "demo-basic", nil)
	if err != nil {
		return err
	}
	step("queue %s", url)

	id, err := c.SendJSON(ctx, url, map[string]any{"order_id": "ORD-001", "amount": 149.99}, nil)
	if err != nil {
		return err
	}
	step("sent message %s", id)

	msgs, err := c.ReceiveMessages(ctx, url, client.ReceiveOptions{MaxMessages: 10})
	if err != nil {
		return err
	}
	if len(msgs) != 1 {
		return fmt.Errorf("expected 1 message, got %d", len(msgs))
	}
	step("received %s: %s", msgs[0].MessageId, msgs[0].Body)

	if err := c.DeleteMessage(ctx, url, msgs[0].ReceiptHandle); err != nil {
		return err
	}
	step("deleted")
	return nil
}

func visibilityExpiry(ctx context.Context, c *client.Client) error {
	url, err := c.CreateQueue(ctx, "demo-visibility", map[string]string{"VisibilityTimeout": "2"})
	if err != nil {
		return err
	}
	if _, err := c.SendMessage(ctx, url, "retry me", nil); err != nil {
		return err
	}

	first, err := c.ReceiveMessages(ctx, url, client.ReceiveOptions{})
	if err != nil || len(first) != 1 {
		return fmt.Errorf("first receive: %d messages, err=%v", len(first), err)
	}
	step("leased for 2s without deleting")

	time.Sleep(3 * time.Second)
	second, err := c.ReceiveMessages(ctx, url, client.ReceiveOptions{})
	if err != nil || len(second) != 1 {
		return fmt.Errorf("second receive: %d messages, err=%v", len(second), err)
	}
	step("redelivered, receive count %d", second[0].ReceiveCount())
	return c.DeleteMessage(ctx, url, second[0].ReceiptHandle)
}

func longPoll(ctx context.Context, c *client.Client) error {
	url, err := c.CreateQueue(ctx, "demo-longpoll", nil)
	if err != nil {
		return err
	}
	go func() {
		time.Sleep(time.Second)
		_, _ = c.SendMessage(ctx, url, "worth the wait", nil)
	}()

	start := time.Now()
	msgs, err := c.ReceiveMessages(ctx, url, client.ReceiveOptions{Wait: 3 * time.Second})
	if err != nil {
		return err
	}
	step("receive waited %s and got %d message(s)", time.Since(start).Round(100*time.Millisecond), len(msgs))
	for _, m := range msgs {
		if err := c.DeleteMessage(ctx, url, m.ReceiptHandle); err != nil {
			return err
		}
	}
	return nil
}

func checkServer(baseURL string) bool {
	resp, err := http.Get(baseURL + "/healthz")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func displayMetrics(baseURL string) {
	resp, err := http.Get(baseURL + "/metrics")
	if err != nil {
		return
	}
	defer resp.Body.Close()

	fmt.Printf("%sMetrics%s\n", colorBold+colorCyan, colorReset)
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "sqs_") && !strings.Contains(line, "_bucket") {
			fmt.Println("  " + line)
		}
	}
}
