package main

import (
	"fmt"
	"log"

	"github.com/cachemir/cachemir/pkg/client"
)

func main() {
	endpoints := []string{"localhost:11211", "localhost:11212", "localhost:11213"}

	c, err := client.New(endpoints)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer c.Close()

	fmt.Println("=== Cache Client Example ===")

	fmt.Println("\n--- Basic Storage ---")

	if err := c.Set("user:1", []byte("john_doe"), 0, 0); err != nil {
		log.Printf("set failed: %v", err)
	} else {
		fmt.Println("✓ set user:1 = john_doe")
	}

	if value, _, found, err := c.Get("user:1"); err != nil {
		log.Printf("get failed: %v", err)
	} else if found {
		fmt.Printf("✓ get user:1 = %s\n", value)
	} else {
		fmt.Println("✓ get user:1 = (not found)")
	}

	if added, err := c.Add("user:1", []byte("duplicate"), 0, 0); err != nil {
		log.Printf("add failed: %v", err)
	} else {
		fmt.Printf("✓ add user:1 (already present) = %t\n", added)
	}

	if replaced, err := c.Replace("user:1", []byte("john_doe_updated"), 0, 0); err != nil {
		log.Printf("replace failed: %v", err)
	} else {
		fmt.Printf("✓ replace user:1 = %t\n", replaced)
	}

	fmt.Println("\n--- Append / Prepend ---")

	if err := c.Set("log", []byte("middle"), 0, 0); err != nil {
		log.Printf("set failed: %v", err)
	}
	if ok, err := c.Append("log", []byte("-end")); err != nil {
		log.Printf("append failed: %v", err)
	} else {
		fmt.Printf("✓ append log = %t\n", ok)
	}
	if ok, err := c.Prepend("log", []byte("start-")); err != nil {
		log.Printf("prepend failed: %v", err)
	} else {
		fmt.Printf("✓ prepend log = %t\n", ok)
	}
	if value, _, _, err := c.Get("log"); err == nil {
		fmt.Printf("✓ get log = %s\n", value)
	}

	fmt.Println("\n--- Counters ---")

	if err := c.Set("counter", []byte("0"), 0, 0); err != nil {
		log.Printf("set failed: %v", err)
	}
	if value, _, err := c.Incr("counter", 1); err != nil {
		log.Printf("incr failed: %v", err)
	} else {
		fmt.Printf("✓ incr counter = %d\n", value)
	}
	if value, _, err := c.Incr("counter", 1); err != nil {
		log.Printf("incr failed: %v", err)
	} else {
		fmt.Printf("✓ incr counter = %d\n", value)
	}
	if value, _, err := c.Decr("counter", 1); err != nil {
		log.Printf("decr failed: %v", err)
	} else {
		fmt.Printf("✓ decr counter = %d\n", value)
	}

	fmt.Println("\n--- Expiration ---")

	if err := c.Set("temp_key", []byte("temp_value"), 0, 5); err != nil {
		log.Printf("set with exptime failed: %v", err)
	} else {
		fmt.Println("✓ set temp_key with 5s expiration")
	}
	if touched, err := c.Touch("temp_key", 60); err != nil {
		log.Printf("touch failed: %v", err)
	} else {
		fmt.Printf("✓ touch temp_key = %t\n", touched)
	}

	fmt.Println("\n--- Diagnostics ---")

	if version, err := c.Version("user:1"); err != nil {
		log.Printf("version failed: %v", err)
	} else {
		fmt.Printf("✓ version = %s\n", version)
	}

	for addr, stats := range c.Stats() {
		fmt.Printf("✓ stats[%s] curr_items=%s total_items=%s\n", addr, stats["curr_items"], stats["total_items"])
	}

	fmt.Println("\n--- Cleanup ---")

	if deleted, err := c.Delete("user:1"); err != nil {
		log.Printf("delete failed: %v", err)
	} else {
		fmt.Printf("✓ delete user:1 = %t\n", deleted)
	}

	fmt.Println("\n=== Example Complete ===")
}
