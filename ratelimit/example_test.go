package ratelimit_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/notegate/ratelimit"
)

func ExampleLimiter_Admit() {
	limiter := ratelimit.NewLimiter(
		ratelimit.NewMemoryStore(ratelimit.MemoryStoreConfig{}),
		ratelimit.Config{Limit: 3, Window: time.Minute},
	)

	start := time.Unix(1_700_000_000, 0)
	for _, sec := range []int{0, 1, 2, 3, 65} {
		d, err := limiter.Admit(context.Background(), "user:42", start.Add(time.Duration(sec)*time.Second))
		if err != nil {
			panic(err)
		}
		fmt.Printf("t=%d allowed=%v remaining=%d\n", sec, d.Allowed, d.Remaining)
	}
	// Output:
	// t=0 allowed=true remaining=2
	// t=1 allowed=true remaining=1
	// t=2 allowed=true remaining=0
	// t=3 allowed=false remaining=0
	// t=65 allowed=true remaining=2
}
