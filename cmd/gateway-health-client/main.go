package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	var target string
	var service string
	var watch bool
	flag.StringVar(&target, "target", "127.0.0.1:9090", "gRPC health server address")
	flag.StringVar(&service, "service", "", "service to check; empty is the aggregate status, or a system such as kubernetes")
	flag.BoolVar(&watch, "watch", false, "stream status changes instead of checking once")
	flag.Parse()

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Errorf("dial %s: %w", target, err))
	}
	defer conn.Close()

	c := healthpb.NewHealthClient(conn)

	if watch {
		stream, err := c.Watch(context.Background(), &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			fmt.Printf("Watch error: %v\n", err)
			os.Exit(1)
		}
		for {
			resp, err := stream.Recv()
			if err != nil {
				fmt.Printf("Watch ended: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s %q: %s\n", time.Now().Format(time.RFC3339), service, resp.GetStatus())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		fmt.Printf("Check error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Check %q: %s\n", service, resp.GetStatus())
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}
