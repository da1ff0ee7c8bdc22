// daqlog — логгер данных приборов: опрос по последовательному порту или TCP на выровненных
// по часам тактах, буферизация строк, запись и ротация файлов .dat, остановка через файл состояния.
//
// Использование:
//
//	daqlog run --config daqlog.yml          — все включённые приборы
//	daqlog run G2401                        — один прибор
//	daqlog manager                          — интерактивный менеджер (Run/Quit, последние строки)
//	daqlog state quit --wait                — остановить логгеры
//	daqlog ports                            — последовательные порты системы
package main

import (
	"fmt"
	"os"

	"github.com/shiwa/daqlog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "daqlog:", err)
		os.Exit(1)
	}
}
