package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	z "go.dedis.ch/syfer/internal/testing"
	"go.dedis.ch/syfer/peer"
	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
)

// -----------------------------------------------------------------------------
// Node CMD Prompt

var actionOpts = []string{
	"🦑 Send tensor",
	"🧮 Run op on pointers",
	"👀 Fetch pointer",
	"🤝 Share a secret",
	"🎲 Deal triples",
	"✨ Multiply shared",
	"🔔 Reconstruct",
	"🦈 Add peer",
	"🐊 Show identity",
	"🍃 Exit",
}

var actions = map[string]func(*z.TestNode) error{
	actionOpts[0]: sendTensor,
	actionOpts[1]: runOp,
	actionOpts[2]: fetchPointer,
	actionOpts[3]: shareSecret,
	actionOpts[4]: dealTriples,
	actionOpts[5]: mulShared,
	actionOpts[6]: reconstruct,
	actionOpts[7]: addPeer,
	actionOpts[8]: showIdentity,
	actionOpts[9]: exitNode,
}

// console session state: named handles on remote tensors and secrets
var (
	pointers = map[string]*peer.Pointer{}
	secrets  = map[string]types.SharedTensor{}
)

// -----------------------------------------------------------------------------
// Perform actions

func performActions(node *z.TestNode) {
	prompt := &survey.Select{
		Message: "What do you want to do ?",
		Options: actionOpts,
	}

	var action string
	for {
		err := survey.AskOne(prompt, &action)
		if err != nil {
			fmt.Println(err)
			return
		}

		method := actions[action]
		err = method(node)
		if err != nil {
			fmt.Println("~~ERROR~~")
			fmt.Println(err)
		}
	}
}

// -----------------------------------------------------------------------------
// CMD Actions

func sendTensor(node *z.TestNode) error {
	dest := ask("Destination worker address: ")
	name := ask("Name for the pointer: ")

	t, err := askTensor(node)
	if err != nil {
		return err
	}

	ptr, err := node.SendTensor(t, dest)
	if err != nil {
		return err
	}
	pointers[name] = ptr

	fmt.Printf("%s -> %s\n", name, ptr.Ref())
	return nil
}

func runOp(node *z.TestNode) error {
	op := types.Op(ask("Operation (add/sub/mulelem/div/matmul/neg/mulscalar): "))

	x, err := askPointer("First pointer: ")
	if err != nil {
		return err
	}

	var res *peer.Pointer
	switch op {
	case types.OpAdd, types.OpSub, types.OpMulElem, types.OpDiv, types.OpMatMul:
		y, err := askPointer("Second pointer: ")
		if err != nil {
			return err
		}
		switch op {
		case types.OpAdd:
			res, err = x.Add(y)
		case types.OpSub:
			res, err = x.Sub(y)
		case types.OpMulElem:
			res, err = x.MulElem(y)
		case types.OpDiv:
			res, err = x.Div(y)
		default:
			res, err = x.MatMul(y)
		}
		if err != nil {
			return err
		}
	case types.OpNeg:
		res, err = x.Neg()
		if err != nil {
			return err
		}
	case types.OpMulScalar:
		k, err := strconv.ParseUint(ask("Scalar: "), 10, 64)
		if err != nil {
			return err
		}
		res, err = x.MulScalar(k)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported operation %s", op)
	}

	name := ask("Name for the result: ")
	pointers[name] = res

	fmt.Printf("%s -> %s, shape %v\n", name, res.Ref(), res.Shape())
	return nil
}

func fetchPointer(node *z.TestNode) error {
	ptr, err := askPointer("Pointer: ")
	if err != nil {
		return err
	}

	t, err := ptr.Get()
	if err != nil {
		return err
	}

	fmt.Printf("shape %v: %v\n", t.Shape(), t.Data())
	return nil
}

func shareSecret(node *z.TestNode) error {
	participants := askList("Participants (comma separated addresses): ")
	name := ask("Name for the secret: ")

	t, err := askTensor(node)
	if err != nil {
		return err
	}

	st, err := node.ShareSecret(t, participants)
	if err != nil {
		return err
	}
	secrets[name] = st

	fmt.Printf("%s -> %s\n", name, st)
	return nil
}

func dealTriples(node *z.TestNode) error {
	participants := askList("Participants (comma separated addresses): ")

	op := types.Op(ask("Operation (mulelem/matmul): "))
	xShape, err := types.DecodeShape(ask("First operand shape (e.g. 2x3): "))
	if err != nil {
		return err
	}
	yShape, err := types.DecodeShape(ask("Second operand shape: "))
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(ask("How many: "))
	if err != nil {
		return err
	}

	return node.DealTriples(participants, op, xShape, yShape, count)
}

func mulShared(node *z.TestNode) error {
	x, err := askSecret("First secret: ")
	if err != nil {
		return err
	}
	y, err := askSecret("Second secret: ")
	if err != nil {
		return err
	}

	res, err := node.MulShared(&x, &y)
	if err != nil {
		return err
	}

	name := ask("Name for the result: ")
	secrets[name] = res

	fmt.Printf("%s -> %s\n", name, res)
	return nil
}

func reconstruct(node *z.TestNode) error {
	st, err := askSecret("Secret: ")
	if err != nil {
		return err
	}

	t, err := node.Reconstruct(&st)
	if err != nil {
		return err
	}

	fmt.Printf("shape %v: %v\n", t.Shape(), t.Data())
	return nil
}

func addPeer(node *z.TestNode) error {
	addrs := askList("Peer addresses (comma separated): ")

	node.AddPeer(addrs...)
	return node.AnnouncePubkey(addrs)
}

func showIdentity(node *z.TestNode) error {
	fmt.Println("Address: ", node.GetAddr())
	fmt.Println("Account: ", node.IdentityAddress())
	return nil
}

// -----------------------------------------------------------------------------
// Input helpers

func ask(msg string) string {
	fmt.Print(msg)
	line := ""
	fmt.Scanln(&line)
	return strings.TrimSpace(line)
}

func askList(msg string) []string {
	var out []string
	for _, p := range strings.Split(ask(msg), ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func askPointer(msg string) (*peer.Pointer, error) {
	name := ask(msg)
	ptr, ok := pointers[name]
	if !ok {
		return nil, fmt.Errorf("no pointer named %s", name)
	}
	return ptr, nil
}

func askSecret(msg string) (types.SharedTensor, error) {
	name := ask(msg)
	st, ok := secrets[name]
	if !ok {
		return types.SharedTensor{}, fmt.Errorf("no secret named %s", name)
	}
	return st, nil
}

func askTensor(node *z.TestNode) (*ring.Tensor, error) {
	shape, err := types.DecodeShape(ask("Shape (e.g. 2x3): "))
	if err != nil {
		return nil, err
	}

	raw := askList("Values (comma separated): ")
	data := make([]uint64, len(raw))
	for i, v := range raw {
		data[i], err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, err
		}
	}

	return ring.FromSlice(data, shape, node.Modulus())
}
