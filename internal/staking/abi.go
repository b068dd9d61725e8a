package staking

// DSIStakingABI covers the staking contract methods the client uses.
const DSIStakingABI = `[
	{"inputs":[],"name":"totalStaked","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"totalStakers","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"numberOfActiveDSIPowerHolders","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"totalActiveDSIPower","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"minimumStake","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"stakingToken","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getAllStakes","outputs":[{"components":[
		{"internalType":"uint256","name":"amount","type":"uint256"},
		{"internalType":"uint256","name":"startTime","type":"uint256"},
		{"internalType":"uint256","name":"endTime","type":"uint256"},
		{"internalType":"uint256","name":"dsiPower","type":"uint256"},
		{"internalType":"bool","name":"claimed","type":"bool"}
	],"internalType":"struct DSIStaking.Stake[]","name":"","type":"tuple[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"uint256","name":"duration","type":"uint256"}],"name":"calculateDSIPower","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"pure","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"uint256","name":"duration","type":"uint256"}],"name":"stake","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"stakeIndex","type":"uint256"}],"name":"claimSpecificStake","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// ERC20ABI is the token sub-interface: balanceOf and approve.
const ERC20ABI = `[
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`
