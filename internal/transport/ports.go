package transport

import (
	"fmt"
	"sort"

	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo — последовательный порт системы.
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Serial  string
	Product string
}

func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	return fmt.Sprintf("%s (USB %s:%s %s %s)", p.Name, p.VID, p.PID, p.Product, p.Serial)
}

// ListPorts перечисляет последовательные порты; USB-сведения добавляются, если их удалось получить.
func ListPorts() ([]PortInfo, error) {
	names, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	byName := make(map[string]PortInfo, len(names))
	for _, n := range names {
		byName[n] = PortInfo{Name: n}
	}
	if details, err := enumerator.GetDetailedPortsList(); err == nil {
		for _, d := range details {
			byName[d.Name] = PortInfo{
				Name:    d.Name,
				USB:     d.IsUSB,
				VID:     d.VID,
				PID:     d.PID,
				Serial:  d.SerialNumber,
				Product: d.Product,
			}
		}
	}
	out := make([]PortInfo, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
