package main

import (
	"fmt"
	"log/slog"

	"github.com/micro-ha/pod-door-controller/internal/command"
	"github.com/micro-ha/pod-door-controller/internal/config"
	"github.com/micro-ha/pod-door-controller/internal/door"
	"github.com/micro-ha/pod-door-controller/internal/gpio"
	"github.com/micro-ha/pod-door-controller/internal/model"
	"github.com/micro-ha/pod-door-controller/internal/router"
)

// openProvider selects the GPIO backend. dryRun forces simulated lines.
func openProvider(cfg config.Config, dryRun bool) (gpio.Provider, error) {
	if dryRun || cfg.GPIOBackend == config.BackendSimulated {
		return gpio.NewSimulatedProvider(), nil
	}
	return gpio.NewPeriphProvider()
}

// buildDoors acquires every configured line and registers one binding per
// topic. Doors are added to the registry as soon as they exist so a partial
// failure can still release what was acquired.
func buildDoors(cfg config.Config, provider gpio.Provider, logger *slog.Logger) (*door.Registry, *router.Router, error) {
	registry := door.NewRegistry()
	routes := router.New()

	newDoor := func(id door.Identity, expandPin, retractPin int, fullTravel bool) (*door.Door, error) {
		expand, err := provider.Acquire(expandPin)
		if err != nil {
			return nil, fmt.Errorf("%s expand line: %w", id, err)
		}
		retract, err := provider.Acquire(retractPin)
		if err != nil {
			return nil, fmt.Errorf("%s retract line: %w", id, err)
		}
		opts := []door.Option{door.WithDwell(cfg.Dwell), door.WithLogger(logger)}
		if fullTravel {
			opts = append(opts, door.WithFullTravel())
		}
		d := door.New(id, expand, retract, opts...)
		if err := registry.Add(d); err != nil {
			return nil, err
		}
		return d, nil
	}

	for _, pod := range cfg.Pods {
		id := door.Identity{Family: model.FamilyPod, DoorID: pod.ID, ZoneID: pod.Zone}
		d, err := newDoor(id, pod.ExpandPin, pod.RetractPin, pod.FullTravel)
		if err != nil {
			return registry, nil, err
		}
		if err := routes.Register(router.Binding{
			Topic:   router.PodTopic(pod.Zone, pod.ID),
			Family:  model.FamilyPod,
			Decoder: command.PodGrammar{},
			Doors:   map[string]*door.Door{"": d},
		}); err != nil {
			return registry, nil, err
		}
	}

	for _, port := range cfg.Ports {
		addressable := map[string]bool{}
		for _, leaf := range port.AddressableLeaves {
			addressable[leaf] = true
		}
		binding := router.Binding{
			Topic:  router.PortTopic(port.ID),
			Family: model.FamilyPort,
			Decoder: command.PortGrammar{
				Leaves:        port.AddressableLeaves,
				NumericSignal: port.NumericSignal,
			},
			Doors: map[string]*door.Door{},
		}
		for _, leaf := range port.Leaves {
			id := door.Identity{Family: model.FamilyPort, DoorID: port.ID, Leaf: leaf.Name}
			d, err := newDoor(id, leaf.ExpandPin, leaf.RetractPin, leaf.FullTravel)
			if err != nil {
				return registry, nil, err
			}
			if addressable[leaf.Name] {
				binding.Doors[leaf.Name] = d
			} else {
				binding.Unaddressed = append(binding.Unaddressed, d)
				logger.Info("door leaf configured but not addressable", "door", id.Key(), "topic", binding.Topic)
			}
		}
		if err := routes.Register(binding); err != nil {
			return registry, nil, err
		}
	}

	return registry, routes, nil
}
