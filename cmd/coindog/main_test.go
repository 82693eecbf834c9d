package main

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coindog/config"
	"coindog/internal/model"
)

func TestPick(t *testing.T) {
	cases := []struct {
		args []string
		want string
		rest int
	}{
		{nil, "watch", 0},
		{[]string{"--trade"}, "watch", 1},
		{[]string{"info"}, "info", 0},
		{[]string{"add", "BTC/USDT"}, "add", 1},
		{[]string{"remove", "btc", "--markets", "m.json"}, "remove", 3},
	}
	for _, c := range cases {
		cmd, rest, err := pick(c.args)
		if err != nil {
			t.Fatalf("pick(%v) failed: %v", c.args, err)
		}
		if cmd.name != c.want || len(rest) != c.rest {
			t.Fatalf("pick(%v): expected %s with %d args, got %s with %d", c.args, c.want, c.rest, cmd.name, len(rest))
		}
	}

	if _, _, err := pick([]string{"trade"}); err == nil {
		t.Fatalf("expected unknown command error")
	}
}

type balanceExchange struct {
	model.Exchange
	bal model.Balance
	err error
}

func (b balanceExchange) FetchBalance(context.Context) (model.Balance, error) {
	return b.bal, b.err
}

func TestSeedBalance(t *testing.T) {
	cfg := &config.Config{Paper: config.PaperConfig{Quote: "USDT", Balance: 250}}
	a := &app{cfg: cfg, log: zap.NewNop()}

	a.exchange = balanceExchange{err: model.ErrUnauthenticated}
	bal, err := a.seedBalance(context.Background())
	if err != nil {
		t.Fatalf("seedBalance failed: %v", err)
	}
	if !bal.Get("USDT").Free.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected virtual 250 USDT, got %s", bal.Get("USDT").Free)
	}

	acct := model.Balance{}
	acct.Credit("BTC", decimal.NewFromInt(1))
	a.exchange = balanceExchange{bal: acct}
	bal, err = a.seedBalance(context.Background())
	if err != nil {
		t.Fatalf("seedBalance failed: %v", err)
	}
	if len(bal.Codes()) != 1 || bal.Codes()[0] != "BTC" {
		t.Fatalf("expected account balance, got %v", bal.Codes())
	}

	a.exchange = balanceExchange{err: errors.New("timeout")}
	if _, err := a.seedBalance(context.Background()); err == nil {
		t.Fatalf("expected fetch error")
	}
}

func TestOnlyStdout(t *testing.T) {
	if !onlyStdout([]string{"stdout"}) || onlyStdout([]string{"stdout", "coindog.log"}) {
		t.Fatalf("unexpected onlyStdout result")
	}
}
