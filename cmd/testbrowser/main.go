package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/neboloop/wikirace/internal/browser"
)

// Usage: testbrowser [playwright|chromedp] [article] [link text]
func main() {
	fmt.Println("=== Browser Test ===")

	cfg := browser.DefaultConfig()
	article := "https://en.wikipedia.org/wiki/Pizza"
	linkText := "Italy"
	if len(os.Args) >= 2 {
		cfg.Driver = os.Args[1]
	}
	if len(os.Args) >= 3 {
		article = os.Args[2]
	}
	if len(os.Args) >= 4 {
		linkText = os.Args[3]
	}
	cfg.Headless = os.Getenv("SHOW") == ""

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("\n1. Opening %s driver (headless=%v)...\n", cfg.Driver, cfg.Headless)
	d, err := browser.Open(ctx, cfg)
	if err != nil {
		fmt.Printf("   ERROR: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	fmt.Printf("\n2. Loading %s...\n", article)
	page, err := d.GoTo(ctx, article)
	if err != nil {
		fmt.Printf("   ERROR: %v\n", err)
		return
	}
	fmt.Printf("   Page: %+v\n", page)

	fmt.Printf("\n3. Clicking %q...\n", linkText)
	page, err = d.ActivateLink(ctx, linkText, true)
	if err != nil {
		fmt.Printf("   exact match failed (%v), trying substring...\n", err)
		page, err = d.ActivateLink(ctx, linkText, false)
	}
	if err != nil {
		fmt.Printf("   ERROR: %v\n", err)
		return
	}
	fmt.Printf("   Page: %+v\n", page)

	fmt.Println("\n4. Reading current page...")
	page, err = d.Current(ctx)
	if err != nil {
		fmt.Printf("   ERROR: %v\n", err)
		return
	}
	fmt.Printf("   Page: %+v\n", page)

	fmt.Println("\n5. Going back...")
	page, err = d.Back(ctx)
	if err != nil {
		fmt.Printf("   ERROR: %v\n", err)
		return
	}
	fmt.Printf("   Page: %+v\n", page)

	fmt.Println("\n=== Done ===")
}
